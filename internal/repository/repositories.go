package repository

import (
	"gorm.io/gorm"
)

// Repositories holds all repository instances
type Repositories struct {
	User          UserRepository
	Project       ProjectRepository
	Stage         StageRepository
	Activity      ActivityRepository
	Rubro         RubroRepository
	BudgetLine    BudgetLineRepository
	Transfer      TransferRepository
	PurchaseOrder PurchaseOrderRepository
	Simulation    SimulationRepository
	Notification  NotificationRepository
	RefreshToken  RefreshTokenRepository
}

// NewRepositories creates all repository instances
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:          NewUserRepository(db),
		Project:       NewProjectRepository(db),
		Stage:         NewStageRepository(db),
		Activity:      NewActivityRepository(db),
		Rubro:         NewRubroRepository(db),
		BudgetLine:    NewBudgetLineRepository(db),
		Transfer:      NewTransferRepository(db),
		PurchaseOrder: NewPurchaseOrderRepository(db),
		Simulation:    NewSimulationRepository(db),
		Notification:  NewNotificationRepository(db),
		RefreshToken:  NewRefreshTokenRepository(db),
	}
}
