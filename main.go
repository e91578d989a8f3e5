package main

import (
	"github.com/mbaye/projecthub/config"
	"github.com/mbaye/projecthub/models"
	"github.com/mbaye/projecthub/routes"
	"github.com/mbaye/projecthub/storage"
	"github.com/mbaye/projecthub/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(&models.User{}, &models.Class{}, &models.Project{}, &models.Task{}, &models.Attachment{})

	store, err := storage.NewMinioStore(cfg.StorageEndpoint, cfg.StorageAccessKey, cfg.StorageSecretKey, cfg.StorageBucket, cfg.StorageUseSSL)
	if err != nil {
		utils.Sugar.Fatalf("blob store init failed: %v", err)
	}

	r := routes.SetupRouter(db, store)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
