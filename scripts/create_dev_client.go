// create_dev_client registers a fixed OAuth2 client for local development.
//
//	go run ./scripts/create_dev_client.go -role admin
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"

	"github.com/franciscosanchezn/gin-foodgram-api/internal/config"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/database"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/models"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/services"
	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

func main() {
	// Parse command line flags
	role := flag.String("role", models.RoleAdmin, "User role (admin or user)")
	password := flag.String("password", "dev-password-123", "Password of the owner account when it is created")
	flag.Parse()

	if *role != models.RoleAdmin && *role != models.RoleUser {
		log.Fatalf("Unknown role %q (admin or user)", *role)
	}

	_ = godotenv.Load()
	conf, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Invalid configuration:", err)
	}

	db, err := database.InitDatabase(database.FromAppConfig(conf))
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Determine client credentials based on role
	clientID, clientSecret := "dev-client", "dev-secret-123"
	if *role == models.RoleUser {
		clientID, clientSecret = "user-client", "user-secret-123"
	}

	ctx := context.Background()
	owner, err := ownerForRole(ctx, db, *role, *password)
	if err != nil {
		log.Fatal("Failed to get user for role:", err)
	}

	client := &models.OAuthClient{
		ID:         clientID,
		Name:       fmt.Sprintf("Development %s Client", *role),
		Domain:     "http://localhost",
		UserID:     owner.ID,
		Scopes:     "read write",
		GrantTypes: "client_credentials",
	}
	created, err := services.NewClientService(db).EnsureClient(ctx, client, clientSecret)
	if err != nil {
		log.Fatal("Failed to create client:", err)
	}

	if created {
		fmt.Printf("✓ Development OAuth client created for role '%s'!\n", *role)
	} else {
		fmt.Printf("Development client already exists for role '%s'!\n", *role)
	}
	fmt.Printf("Client ID: %s\n", clientID)
	fmt.Printf("Client Secret: %s\n", clientSecret)
	fmt.Printf("User ID: %d\n", client.UserID)
	fmt.Println("\nUse these credentials for testing:")
	fmt.Printf("curl -X POST http://%s/api/oauth/token \\\n", conf.Addr())
	fmt.Printf("  -d 'grant_type=client_credentials' \\\n")
	fmt.Printf("  -d 'client_id=%s' \\\n", clientID)
	fmt.Printf("  -d 'client_secret=%s'\n", clientSecret)
}

// ownerForRole gets or creates the development account holding the role
func ownerForRole(ctx context.Context, db *gorm.DB, role, password string) (*models.User, error) {
	users := services.NewUserService(db, nil)
	email := fmt.Sprintf("%s@foodgram.local", role)

	user, err := users.GetUserByEmail(ctx, email)
	if err == nil {
		fmt.Printf("Found existing user: %s (ID: %d, Role: %s)\n", user.Email, user.ID, user.Role)
		return user, nil
	}
	if !errors.Is(err, services.ErrNotFound) {
		return nil, err
	}

	user, err = users.CreateUser(ctx, services.RegisterInput{
		Email:     email,
		Username:  "dev-" + role,
		FirstName: "Development",
		LastName:  role,
		Password:  password,
	})
	if err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).Model(user).Update("role", role).Error; err != nil {
		return nil, err
	}

	fmt.Printf("Created new user: %s (ID: %d, Role: %s)\n", user.Email, user.ID, user.Role)
	return user, nil
}
