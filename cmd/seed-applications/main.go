package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/scholarpath/testportal-backend/internal/config"
	"github.com/scholarpath/testportal-backend/internal/database"
	"github.com/scholarpath/testportal-backend/internal/logger"
	"github.com/scholarpath/testportal-backend/internal/model"
	"github.com/scholarpath/testportal-backend/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// Seeds 50 application records plus matching candidate accounts so the
// portal is exercisable end to end on a fresh database. Every candidate's
// password is "secret123".
func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	applicationRepo := repository.NewApplicationRepository(pool)
	candidateRepo := repository.NewCandidateRepository(pool)

	fmt.Println("=== Seeding 50 Applications ===")

	names := []string{
		"Amit Kumar", "Priya Sharma", "Rahul Verma", "Sneha Patel", "Vikram Singh",
		"Ananya Iyer", "Arjun Nair", "Kavya Reddy", "Rohan Mehta", "Ishita Gupta",
		"Aditya Joshi", "Meera Pillai", "Karthik Rao", "Divya Menon", "Sanjay Das",
		"Pooja Mishra", "Nikhil Bansal", "Riya Chatterjee", "Varun Malhotra", "Tanvi Desai",
		"Suresh Singh", "Neha Agarwal", "Manish Tiwari", "Shreya Kulkarni", "Deepak Yadav",
		"Aarti Saxena", "Gaurav Chauhan", "Lakshmi Raman", "Harsh Vardhan", "Swati Bhatt",
		"Ajay Thakur", "Nandini Hegde", "Ravi Shankar", "Pallavi Dixit", "Mohit Arora",
		"Sakshi Jain", "Abhishek Dubey", "Ritika Kapoor", "Siddharth Ghosh", "Anjali Trivedi",
		"Vivek Pandey", "Shruti Naik", "Akash Bhatia", "Komal Srivastava", "Rajesh Khanna",
		"Trisha Mohan", "Yash Chopra", "Madhuri Prasad", "Kiran Kamath", "Bhavna Sethi",
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), cfg.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash seed password")
	}

	successCount := 0
	for i, name := range names {
		applicationNo := fmt.Sprintf("SCH-2026-%04d", i+1)
		email := fmt.Sprintf("%s%d@example.com",
			strings.ToLower(strings.Split(name, " ")[0]), i+1)

		modality := model.ModalityOnline
		if i%10 == 9 {
			modality = model.ModalityOffline
		}

		app := &model.Application{
			ApplicationNo:   applicationNo,
			ApplicantName:   name,
			Email:           email,
			Modality:        modality,
			PaymentVerified: i%7 != 6,
		}
		if err := applicationRepo.Create(ctx, app); err != nil {
			log.Error().Err(err).Str("application_no", applicationNo).Msg("Skipping application")
			continue
		}

		candidate := &model.Candidate{
			Name:         name,
			Email:        email,
			PasswordHash: string(hash),
		}
		if err := candidateRepo.Create(ctx, candidate); err != nil {
			log.Error().Err(err).Str("email", email).Msg("Skipping candidate account")
			continue
		}

		successCount++
	}

	fmt.Printf("Seeded %d applications with candidate accounts (password: secret123)\n", successCount)
}
