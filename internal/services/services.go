package services

import (
	"github.com/secihti/budget-api/internal/config"
	"github.com/secihti/budget-api/internal/jobs"
	"github.com/secihti/budget-api/internal/repository"
	"github.com/secihti/budget-api/internal/storage"
	"gorm.io/gorm"
)

// Services holds all service instances
type Services struct {
	Auth          *AuthService
	User          *UserService
	Project       *ProjectService
	Stage         *StageService
	Activity      *ActivityService
	Rubro         *RubroService
	BudgetLine    *BudgetLineService
	Execution     *ExecutionService
	Transfer      *TransferService
	PurchaseOrder *PurchaseOrderService
	Simulation    *SimulationService
	Export        *ExportService
	Import        *ImportService
	Notification  *NotificationService
	Audit         *AuditService
	Job           *JobService
}

// NewServices creates all service instances
func NewServices(repos *repository.Repositories, worker *jobs.Worker, store *storage.LocalStorage, cfg *config.Config, db *gorm.DB) *Services {
	notificationSvc := NewNotificationService(repos.Notification, repos.User)
	auditSvc := NewAuditService(db)
	jobSvc := NewJobService(worker)

	execSvc := NewExecutionService(repos.Project, repos.Stage, repos.Activity,
		repos.BudgetLine, repos.PurchaseOrder, repos.Transfer, notificationSvc, cfg.CompanyCurrency)

	lineSvc := NewBudgetLineService(repos.BudgetLine, repos.Activity, repos.Transfer,
		repos.Rubro, execSvc, notificationSvc, auditSvc)

	return &Services{
		Auth:       NewAuthService(repos.User, repos.RefreshToken, cfg),
		User:       NewUserService(repos.User, notificationSvc, auditSvc),
		Project:    NewProjectService(repos.Project, repos.Stage, auditSvc),
		Stage:      NewStageService(repos.Stage, repos.Project, auditSvc),
		Activity:   NewActivityService(repos.Activity, repos.Stage, auditSvc),
		Rubro:      NewRubroService(repos.Rubro, auditSvc),
		BudgetLine: lineSvc,
		Execution:  execSvc,
		Transfer: NewTransferService(repos.Transfer, repos.BudgetLine, repos.Stage,
			execSvc, notificationSvc, auditSvc, cfg.CompanyCurrency),
		PurchaseOrder: NewPurchaseOrderService(repos.PurchaseOrder, repos.Project,
			repos.Activity, repos.Rubro, lineSvc, execSvc, notificationSvc, auditSvc,
			store, cfg.CompanyCurrency),
		Simulation: NewSimulationService(repos.Simulation, repos.Project, repos.BudgetLine, auditSvc),
		Export: NewExportService(repos.Project, repos.Stage, repos.BudgetLine,
			repos.Transfer, repos.PurchaseOrder, store),
		Import: NewImportService(repos.Project, repos.Stage, repos.Activity,
			repos.Rubro, repos.BudgetLine, execSvc, auditSvc),
		Notification: notificationSvc,
		Audit:        auditSvc,
		Job:          jobSvc,
	}
}
