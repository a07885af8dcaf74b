package admin

import (
	"github.com/enigmarium/backend/model"
	authutil "github.com/enigmarium/backend/utils/auth"
	"github.com/enigmarium/backend/utils/middleware"
	"github.com/enigmarium/backend/utils/response"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// AdminHandler handles administration requests. Every route using it is
// behind the administrator gate.
type AdminHandler struct {
	db     *gorm.DB
	ledger *authutil.TokenLedger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(db *gorm.DB, ledger *authutil.TokenLedger) *AdminHandler {
	return &AdminHandler{
		db:     db,
		ledger: ledger,
	}
}

// ChangeRoleRequest represents a role change request
type ChangeRoleRequest struct {
	Role model.Role `json:"role"`
}

// adminUserView is the user shape exposed to administrators
type adminUserView struct {
	ID           uint       `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Role         model.Role `json:"role"`
	LiveSessions int64      `json:"live_sessions"`
}

// ListUsers returns all users with their live session counts, paginated
func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 10)

	var total int64
	if err := h.db.Model(&model.User{}).Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count users")
	}

	pagination := response.CalculatePagination(page, limit, total)

	var users []model.User
	err := h.db.
		Order("id ASC").
		Offset((pagination.CurrentPage - 1) * pagination.PerPage).
		Limit(pagination.PerPage).
		Find(&users).Error
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch users")
	}

	views := make([]adminUserView, 0, len(users))
	for _, user := range users {
		live, err := h.ledger.LiveCountForUser(c.Context(), user.ID)
		if err != nil {
			return response.InternalServerError(c, "Failed to count sessions")
		}
		views = append(views, adminUserView{
			ID:           user.ID,
			Name:         user.Name,
			Email:        user.Email,
			Role:         user.Role,
			LiveSessions: live,
		})
	}

	return response.Paginated(c, views, pagination)
}

// ChangeRole changes a user's role. Promoting or demoting a user revokes
// their open sessions so stale role claims cannot linger in live tokens.
func (h *AdminHandler) ChangeRole(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return response.BadRequest(c, "Invalid user ID")
	}

	var req ChangeRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if !req.Role.IsValid() {
		return response.BadRequest(c, "Invalid role")
	}

	callerID, _ := middleware.GetUserID(c)
	if callerID == uint(id) {
		return response.BadRequest(c, "You cannot change your own role")
	}

	var user model.User
	if err := h.db.First(&user, id).Error; err != nil {
		return response.NotFound(c, "User not found")
	}

	if err := h.db.Model(&user).Update("role", req.Role).Error; err != nil {
		return response.InternalServerError(c, "Failed to change role")
	}

	if err := h.ledger.InvalidateAllForUser(c.Context(), user.ID); err != nil {
		return response.InternalServerError(c, "Failed to revoke sessions")
	}

	return response.SuccessWithMessage(c, "Role updated successfully", fiber.Map{
		"id":   user.ID,
		"role": req.Role,
	})
}

// RevokeSessions invalidates every live session credential a user holds
func (h *AdminHandler) RevokeSessions(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return response.BadRequest(c, "Invalid user ID")
	}

	var user model.User
	if err := h.db.First(&user, id).Error; err != nil {
		return response.NotFound(c, "User not found")
	}

	if err := h.ledger.InvalidateAllForUser(c.Context(), user.ID); err != nil {
		return response.InternalServerError(c, "Failed to revoke sessions")
	}

	return response.SuccessWithMessage(c, "All sessions revoked", nil)
}
