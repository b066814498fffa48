// Command createsuperuser creates an elevated account from the terminal.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"syscall"

	"github.com/miyabe/user-account-api/internal/config"
	"github.com/miyabe/user-account-api/internal/database"
	"github.com/miyabe/user-account-api/internal/repository"
	"github.com/miyabe/user-account-api/internal/services"
	"golang.org/x/term"
)

func main() {
	username := flag.String("username", "", "username for the new superuser")
	email := flag.String("email", "", "email for the new superuser")
	flag.Parse()

	cfg := config.Load()
	if err := database.Connect(cfg); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	reader := bufio.NewReader(os.Stdin)
	if *username == "" {
		*username = prompt(reader, "Username: ")
	}
	if *email == "" {
		*email = prompt(reader, "Email: ")
	}

	password, err := promptPassword("Password: ")
	if err != nil {
		log.Fatalf("Failed to read password: %v", err)
	}
	confirm, err := promptPassword("Password (again): ")
	if err != nil {
		log.Fatalf("Failed to read password: %v", err)
	}
	if password != confirm {
		log.Fatal("Passwords do not match")
	}

	userRepo := repository.NewUserRepository(database.GetDB())
	userService := services.NewUserService(userRepo)

	user, err := userService.CreateSuperuser(services.CreateUserInput{
		Username: *username,
		Email:    *email,
		Password: password,
	})
	if err != nil {
		log.Fatalf("Failed to create superuser: %v", err)
	}

	fmt.Printf("Superuser %q created (id %s)\n", user.Username, user.ID)
}

func prompt(reader *bufio.Reader, label string) string {
	fmt.Print(label)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

func promptPassword(label string) (string, error) {
	fmt.Print(label)
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
