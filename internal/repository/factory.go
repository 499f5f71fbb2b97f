package repository

import (
	"github.com/flexprice/membership/internal/domain/entitlement"
	"github.com/flexprice/membership/internal/domain/user"
	"github.com/flexprice/membership/internal/logger"
	"github.com/flexprice/membership/internal/postgres"
	postgresRepo "github.com/flexprice/membership/internal/repository/postgres"
)

func NewEntitlementRepository(db *postgres.DB, logger *logger.Logger) entitlement.Repository {
	return postgresRepo.NewEntitlementRepository(db, logger)
}

func NewUserRepository(db *postgres.DB, logger *logger.Logger) user.Repository {
	return postgresRepo.NewUserRepository(db, logger)
}
