package app

import (
	"fmt"
	"os"

	"github.com/enigmarium/backend/api"
	"github.com/enigmarium/backend/config"
	"github.com/enigmarium/backend/database"
	"github.com/enigmarium/backend/router"
	"github.com/enigmarium/backend/services/cron"
	"github.com/enigmarium/backend/utils/captcha"
	"gorm.io/gorm"
)

func SetupAndRunServer() error {

	// Load ENV
	if err := config.LoadENV(); err != nil {
		return err
	}

	getEnv, err := config.Get()
	if err != nil {
		return err
	}

	// Initialize GORM database connection
	store, err := database.StartGORM()
	if err != nil {
		print("Check whether Postgres is running or not\n")
		return err
	}

	if err := store.Init(); err != nil {
		print("Failed to initialize database tables\n")
		return err
	}

	// The captcha engine generates its HMAC key here. A generation failure
	// aborts startup instead of surfacing later on the first challenge.
	captchaEngine, err := captcha.NewEngine(getEnv.CAPTCHA_ALGORITHM)
	if err != nil {
		print("Failed to initialize captcha engine\n")
		return err
	}

	// Initialize Cron Manager (only if enabled via environment variable)
	var cronManager *cron.CronManager
	if os.Getenv("CRON_ENABLED") != "false" { // Default to enabled
		db, ok := store.GetDB().(*gorm.DB)
		if !ok {
			print("Warning: Failed to get database connection for cron jobs\n")
		} else {
			cronManager = cron.NewCronManager(db)
			if err := cronManager.Start(); err != nil {
				print("Warning: Failed to start cron jobs\n")
				print("Error: ", err.Error(), "\n")
				// Don't fail the app, just log the warning
			}
		}
	}

	// Defer Closing DB and stopping cron jobs
	defer func() {
		if cronManager != nil {
			cronManager.Stop()
		}
		store.Close()
	}()

	// Init API
	var server *api.APIServer = api.NewAPIServer(fmt.Sprintf(":%d", getEnv.PORT))
	app := server.GetEngine()

	// Setup Routes
	router.SetupRoutes(app, store, captchaEngine, getEnv)

	// Get the PORT & Start the Server
	return server.Run()

}
