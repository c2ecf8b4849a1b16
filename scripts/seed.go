//go:build ignore

package main

import (
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/hugh/referral-hub/internal/database"
	"github.com/hugh/referral-hub/internal/database/models"
	"github.com/hugh/referral-hub/pkg/config"
	"github.com/hugh/referral-hub/pkg/util"
	"github.com/joho/godotenv"
)

// Seeds a pair of demo members and a referral between them. Codes are
// still issued through the normal login flow; this only pre-creates the
// directory-backed user rows so a local stack has data to look at.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Server.Env)

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	introducer := models.User{
		Base:           models.Base{ID: uuid.New()},
		Email:          "alice@example.com",
		Name:           "Alice Demo",
		CircleMemberID: "1001",
	}
	receiver := models.User{
		Base:           models.Base{ID: uuid.New()},
		Email:          "bob@example.com",
		Name:           "Bob Demo",
		CircleMemberID: "1002",
	}

	for _, user := range []*models.User{&introducer, &receiver} {
		var existing models.User
		if err := db.First(&existing, "email = ?", user.Email).Error; err == nil {
			*user = existing
			fmt.Printf("User already exists: %s\n", user.Email)
			continue
		}
		if err := db.Create(user).Error; err != nil {
			log.Fatalf("failed to create user %s: %v", user.Email, err)
		}
		fmt.Printf("Created user: %s\n", user.Email)
	}

	var count int64
	db.Model(&models.Referral{}).Where("introducer_user_id = ?", introducer.ID).Count(&count)
	if count > 0 {
		fmt.Println("Demo referral already exists")
		return
	}

	referral := models.Referral{
		IntroducerUserID: introducer.ID,
		ReceiverUserID:   receiver.ID,
		LeadCompany:      "Acme Corp",
		LeadEmail:        "buyer@acme.example.com",
		DealValue:        12000,
		Stage:            models.StageNew,
	}
	if err := db.Create(&referral).Error; err != nil {
		log.Fatalf("failed to create referral: %v", err)
	}

	fmt.Printf("Created referral %s (%s -> %s)\n", referral.ID, introducer.Email, receiver.Email)
}
