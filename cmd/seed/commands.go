package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gorm.io/gorm"

	"scholarsite/internal/config"
	"scholarsite/internal/db"
	"scholarsite/internal/logging"
	"scholarsite/internal/model"
	"scholarsite/internal/repository"
	"scholarsite/internal/service"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// openDB is a test seam for the database connection.
var openDB = func(cfg *config.Config) (*gorm.DB, error) {
	gormDB, err := db.Open(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(gormDB, false); err != nil {
		return nil, err
	}
	return gormDB, nil
}

func newRootCmd() *cobra.Command {
	var cfg *config.Config
	root := &cobra.Command{
		Use:           "seed",
		Short:         "Provision users and schema out of band",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg = config.Load()
		},
	}
	getCfg := func() *config.Config { return cfg }

	root.AddCommand(newUserCmd(getCfg), newAdminCmd(getCfg), newMigrateCmd(getCfg))
	return root
}

func newUserCmd(cfg func() *config.Config) *cobra.Command {
	var email, name, password, role string

	cmd := &cobra.Command{
		Use:   "user",
		Short: "Create or update a user by email",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				p, err := promptPassword(cmd.ErrOrStderr(), int(os.Stdin.Fd()))
				if err != nil {
					return err
				}
				password = p
			}
			r, err := model.ParseRole(role)
			if err != nil {
				return err
			}
			return provision(cmd, cfg(), service.ProvisionInput{
				Email:    email,
				Name:     name,
				Password: password,
				Role:     r,
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "login email (required)")
	cmd.Flags().StringVar(&name, "name", "", "display name (required)")
	cmd.Flags().StringVar(&password, "password", "", "password; prompted when omitted")
	cmd.Flags().StringVar(&role, "role", string(model.RoleUser), "ADMIN or USER")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newAdminCmd(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "admin",
		Short: "Create or update the admin from ADMIN_EMAIL, ADMIN_NAME and ADMIN_PASSWORD",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := adminFromEnv(os.Getenv)
			if err != nil {
				return err
			}
			return provision(cmd, cfg(), in)
		},
	}
}

func newMigrateCmd(cfg func() *config.Config) *cobra.Command {
	var reset bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := cfg()
			gormDB, err := db.Open(c.DBDriver, c.DatabaseDSN)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			if err := db.Migrate(gormDB, reset || c.ResetDB); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "drop all tables first")
	return cmd
}

func provision(cmd *cobra.Command, cfg *config.Config, in service.ProvisionInput) error {
	log := logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)

	gormDB, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	users := service.NewUserService(repository.NewUserRepository(gormDB), cfg.BcryptCost, log)
	user, created, err := users.Provision(cmd.Context(), in)
	if err != nil {
		return err
	}

	verb := "updated"
	if created {
		verb = "created"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s, %s)\n", verb, user.Email, user.Role, user.ID)
	return nil
}

// adminFromEnv builds the admin provisioning input from the environment.
func adminFromEnv(getenv func(string) string) (service.ProvisionInput, error) {
	in := service.ProvisionInput{
		Email:    strings.TrimSpace(getenv("ADMIN_EMAIL")),
		Name:     strings.TrimSpace(getenv("ADMIN_NAME")),
		Password: getenv("ADMIN_PASSWORD"),
		Role:     model.RoleAdmin,
	}
	if in.Name == "" {
		in.Name = "Administrator"
	}
	if in.Email == "" || in.Password == "" {
		return in, errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set")
	}
	return in, nil
}

// promptPassword reads a password twice without echo and requires both to match.
func promptPassword(w io.Writer, fd int) (string, error) {
	fmt.Fprint(w, "Password: ")
	first, err := readPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	fmt.Fprint(w, "Repeat password: ")
	second, err := readPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}
