package postgres

import (
	"fmt"
	"time"
)

const (
	poolHealthCheckPeriod = time.Minute
	poolMaxConnLifetime   = time.Hour
	poolMaxConnIdleTime   = 30 * time.Minute
	dbPingTimeout         = 5 * time.Second

	defaultListLimit = 100
	maxListLimit     = 500

	errIdentityNotFound = "identity not found"
	errUsernameExists   = "username already exists"
	errLastAdmin        = "cannot disable or demote the last enabled administrator"

	errFailedParseDatabaseConfigFmt  = "failed to parse database config: %w"
	errFailedCreateConnectionPoolFmt = "failed to create connection pool: %w"
	errFailedPingDatabaseFmt         = "failed to ping database: %w"
	errFailedReadMigrationFmt        = "failed to read migration: %w"
	errFailedApplyMigrationFmt       = "failed to apply migration %s: %w"

	errFailedStartTransactionFmt  = "failed to start transaction: %w"
	errFailedCommitTransactionFmt = "failed to commit transaction: %w"
	errFailedLockIdentitiesFmt    = "failed to lock identities: %w"

	errFailedCreateIdentityFmt = "failed to create identity: %w"
	errFailedGetIdentityFmt    = "failed to get identity: %w"
	errFailedListIdentitiesFmt = "failed to list identities: %w"
	errFailedScanIdentityFmt   = "failed to scan identity: %w"
	errIterateIdentitiesFmt    = "error iterating identities: %w"
	errFailedUpdateIdentityFmt = "failed to update identity: %w"
	errFailedCountAdminsFmt    = "failed to count admins: %w"
)

var (
	errFailedApplyMigration       = func(name string, err error) error { return fmt.Errorf(errFailedApplyMigrationFmt, name, err) }
	errFailedCommitTransaction    = func(err error) error { return fmt.Errorf(errFailedCommitTransactionFmt, err) }
	errFailedCountAdmins          = func(err error) error { return fmt.Errorf(errFailedCountAdminsFmt, err) }
	errFailedCreateConnectionPool = func(err error) error { return fmt.Errorf(errFailedCreateConnectionPoolFmt, err) }
	errFailedCreateIdentity       = func(err error) error { return fmt.Errorf(errFailedCreateIdentityFmt, err) }
	errFailedGetIdentity          = func(err error) error { return fmt.Errorf(errFailedGetIdentityFmt, err) }
	errFailedLockIdentities       = func(err error) error { return fmt.Errorf(errFailedLockIdentitiesFmt, err) }
	errFailedListIdentities       = func(err error) error { return fmt.Errorf(errFailedListIdentitiesFmt, err) }
	errFailedParseDatabaseConfig  = func(err error) error { return fmt.Errorf(errFailedParseDatabaseConfigFmt, err) }
	errFailedPingDatabase         = func(err error) error { return fmt.Errorf(errFailedPingDatabaseFmt, err) }
	errFailedReadMigration        = func(err error) error { return fmt.Errorf(errFailedReadMigrationFmt, err) }
	errFailedScanIdentity         = func(err error) error { return fmt.Errorf(errFailedScanIdentityFmt, err) }
	errFailedStartTransaction     = func(err error) error { return fmt.Errorf(errFailedStartTransactionFmt, err) }
	errFailedUpdateIdentity       = func(err error) error { return fmt.Errorf(errFailedUpdateIdentityFmt, err) }
	errIterateIdentities          = func(err error) error { return fmt.Errorf(errIterateIdentitiesFmt, err) }
)
