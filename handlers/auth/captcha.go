package auth

import (
	"github.com/enigmarium/backend/utils/captcha"
	"github.com/enigmarium/backend/utils/response"
	"github.com/gofiber/fiber/v2"
)

// GetCaptcha hands out a fresh challenge. The server keeps nothing: the
// client must send the whole payload back, solved, with its form.
func (h *AuthHandler) GetCaptcha(c *fiber.Ctx) error {
	challenge, err := h.captchaEngine.Create("", 0)
	if err != nil {
		if err == captcha.ErrUnavailable {
			return response.ServiceUnavailable(c, "Captcha temporarily unavailable, please retry")
		}
		return response.InternalServerError(c, "Failed to create captcha")
	}

	return response.Success(c, challenge)
}
