package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"project-service/internal/app"
	"project-service/internal/auth"
	"project-service/internal/config"
	"project-service/internal/domain/identity"
	"project-service/internal/repository/postgres"
	"project-service/pkg/validator"

	"github.com/spf13/cobra"
)

var (
	errMigrateNeedsPostgres = errors.New("migrate only applies to IDENTITY_STORE=postgres; the sqlite store creates its schema on open")
	errEmptyPassword        = errors.New("password must not be empty")
)

var userFlags struct {
	username string
	password string
	role     string
	cost     int
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the embedded postgres schema",
	Long: `Apply the embedded postgres schema. Every statement is idempotent so
migrate is safe to run on each deploy.`,
	RunE: runMigrate,
}

var createUserCmd = &cobra.Command{
	Use:   "create-user",
	Short: "Create an identity in the configured store",
	Long: `Create an identity in the configured store. The password is read from
--password or, when omitted, from the first line of stdin.

Examples:
  # Bootstrap the first administrator
  echo "$ADMIN_PASSWORD" | projectsvc create-user --username root --role ADMIN`,
	RunE: runCreateUser,
}

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password",
	Short: "Print the bcrypt hash of a password",
	Long: `Print the bcrypt hash of a password read from --password or stdin. The
cost defaults to BCRYPT_COST.`,
	RunE: runHashPassword,
}

var issueTokenCmd = &cobra.Command{
	Use:   "issue-token",
	Short: "Issue a bearer token for an existing identity",
	Long: `Issue a bearer token for an enabled identity without a password check.
Intended for operators and smoke tests; the token is signed with the same
key and TTL the server uses.`,
	RunE: runIssueToken,
}

func init() {
	rootCmd.AddCommand(migrateCmd, createUserCmd, hashPasswordCmd, issueTokenCmd)

	createUserCmd.Flags().StringVarP(&userFlags.username, "username", "u", "", "username (required)")
	createUserCmd.Flags().StringVar(&userFlags.password, "password", "", "password; read from stdin when empty")
	createUserCmd.Flags().StringVarP(&userFlags.role, "role", "r", string(identity.RoleUser), "role: USER, ADMIN or PROJECT_MANAGER")
	_ = createUserCmd.MarkFlagRequired("username")

	hashPasswordCmd.Flags().StringVar(&userFlags.password, "password", "", "password; read from stdin when empty")
	hashPasswordCmd.Flags().IntVar(&userFlags.cost, "cost", 0, "bcrypt cost; BCRYPT_COST when zero")

	issueTokenCmd.Flags().StringVarP(&userFlags.username, "username", "u", "", "username (required)")
	_ = issueTokenCmd.MarkFlagRequired("username")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadStore()
	if err != nil {
		return err
	}
	if cfg.Store.Backend != config.StorePostgres {
		return errMigrateNeedsPostgres
	}

	db, err := postgres.New(commandContext(cmd), &cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	applied, err := db.Migrate(commandContext(cmd))
	if err != nil {
		return err
	}
	for _, name := range applied {
		fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", name)
	}
	return nil
}

func runCreateUser(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadStore()
	if err != nil {
		return err
	}

	username := identity.NormalizeUsername(userFlags.username)
	if err := validator.Username(username); err != nil {
		return err
	}
	role, err := identity.ParseRole(userFlags.role)
	if err != nil {
		return err
	}
	password, err := readPassword(cmd.InOrStdin(), userFlags.password)
	if err != nil {
		return err
	}
	if err := validator.Password(password); err != nil {
		return err
	}

	hash, err := auth.NewCredentialVerifier(cfg.Auth.BcryptCost).Hash(password)
	if err != nil {
		return err
	}

	store, err := app.OpenStore(commandContext(cmd), cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	created, err := store.Identities.Create(commandContext(cmd), identity.CreateIdentityInput{
		Username:     username,
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s) with id %s\n", created.Username, created.Role, created.ID)
	return nil
}

func runHashPassword(cmd *cobra.Command, args []string) error {
	password, err := readPassword(cmd.InOrStdin(), userFlags.password)
	if err != nil {
		return err
	}

	cost := userFlags.cost
	if cost == 0 {
		cost = config.BcryptCost()
	}

	hash, err := auth.NewCredentialVerifier(cost).Hash(password)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), hash)
	return nil
}

func runIssueToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)

	if err := app.ResolveSecret(ctx, cfg); err != nil {
		return err
	}
	tokens, err := app.NewTokenService(cfg)
	if err != nil {
		return err
	}

	store, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	details, err := auth.NewIdentityResolver(store.Identities, cfg.Auth.IdentityLookupTimeout).ByUsername(ctx, userFlags.username)
	if err != nil {
		return err
	}

	token, err := tokens.Issue(details)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, token.Value)
	fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", token.ExpiresAt.Format(time.RFC3339))
	return nil
}

// readPassword returns flagValue or, when it is empty, the first line of r.
func readPassword(r io.Reader, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}

	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errEmptyPassword
	}
	return password, nil
}
