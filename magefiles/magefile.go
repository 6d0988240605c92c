//go:build mage

package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/joho/godotenv"
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const migrationsDir = "./internal/adapters/sqlite/migrations"

// Dbup runs dbmate against DATABASE_URL with the embedded migrations.
// The CLI applies the same files on start; this is for inspecting a db by hand.
func Dbup() error {
	if _, err := exec.LookPath("dbmate"); err != nil {
		fmt.Println(">> dbmate not found; install with:")
		fmt.Println("   go install github.com/amacneil/dbmate/v2@latest")
		return err
	}
	fmt.Println(">> dbmate up")
	return sh.Run("dbmate", "--migrations-dir", migrationsDir, "--no-dump-schema", "up")
}

// Build tidies deps, then compiles to ./bin/remessa.
func Build() error {
	mg.Deps(Tidy)
	fmt.Println(">> Building remessa binary...")
	return sh.Run("go", "build", "-o", "bin/remessa", "./cmd/remessa")
}

// Run builds then prints the CLI help.
func Run() error {
	mg.Deps(Build)
	return sh.RunV("./bin/remessa", "--help")
}

// Tidy runs go mod tidy.
func Tidy() error {
	fmt.Println(">> go mod tidy...")
	return sh.Run("go", "mod", "tidy")
}

// Test runs all unit tests.
func Test() error {
	fmt.Println(">> Running tests...")
	return sh.RunV("go", "test", "./...")
}

// Lint runs golangci-lint if available.
func Lint() error {
	if _, err := exec.LookPath("golangci-lint"); err != nil {
		fmt.Println(">> golangci-lint not found; skipping.")
		return nil
	}
	return sh.Run("golangci-lint", "run", "./...")
}

// Clean removes build artifacts and the local SQLite DB.
func Clean() error {
	fmt.Println(">> Cleaning...")
	os.RemoveAll("bin")
	return sh.Rm("remessa.db")
}

// Install installs the binary to $GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	return sh.Run("go", "install", "./cmd/remessa")
}

func init() {
	err := godotenv.Load()
	if err != nil {
		slog.Warn("error loading .env file", "err", err)
	}
}
