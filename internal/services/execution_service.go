package services

import (
	"context"
	"fmt"

	"github.com/secihti/budget-api/internal/models"
	"github.com/secihti/budget-api/internal/repository"
	"github.com/secihti/budget-api/pkg/logger"
)

// LineKey identifies the aggregation bucket of a budget line.
type LineKey struct {
	ActivityID uint
	RubroID    uint
}

// ExecutionAmounts accumulates executed money per co-funding component.
type ExecutionAmounts struct {
	Programa    float64
	Concurrente float64
	Total       float64
}

func (a *ExecutionAmounts) add(programa, concurrente float64) {
	a.Programa += programa
	a.Concurrente += concurrente
	a.Total += programa + concurrente
}

// ExecutionData holds executed amounts aggregated at every level of the
// budget hierarchy.
type ExecutionData struct {
	Project  ExecutionAmounts
	Stage    map[uint]ExecutionAmounts
	Activity map[uint]ExecutionAmounts
	Line     map[LineKey]ExecutionAmounts
}

// CollectFromOrders derives executed amounts from purchase orders.
// Only confirmed orders with a positive company currency amount count.
// Each qualifying amount is split by the owning project's percentages
// and bucketed by project, stage, activity and (activity, rubro).
// An order with no stage falls back to its activity's stage. An order
// carrying a rubro but no activity contributes to no line bucket.
func CollectFromOrders(project *models.Project, activities []models.Activity, orders []models.PurchaseOrder, companyCurrency string) *ExecutionData {
	data := &ExecutionData{
		Stage:    make(map[uint]ExecutionAmounts),
		Activity: make(map[uint]ExecutionAmounts),
		Line:     make(map[LineKey]ExecutionAmounts),
	}

	activityByID := make(map[uint]*models.Activity, len(activities))
	for i := range activities {
		activityByID[activities[i].ID] = &activities[i]
	}

	for i := range orders {
		order := &orders[i]
		if order.ProjectID != project.ID || !order.Qualifies(companyCurrency) {
			continue
		}

		amount := order.EffectiveMXN(companyCurrency)
		programa, concurrente := project.SplitAmount(amount)

		data.Project.add(programa, concurrente)

		var activity *models.Activity
		if order.ActivityID != nil {
			activity = activityByID[*order.ActivityID]
		}

		if stageID := order.EffectiveStageID(activity); stageID != 0 {
			bucket := data.Stage[stageID]
			bucket.add(programa, concurrente)
			data.Stage[stageID] = bucket
		}

		if order.ActivityID != nil {
			bucket := data.Activity[*order.ActivityID]
			bucket.add(programa, concurrente)
			data.Activity[*order.ActivityID] = bucket

			if order.RubroID != nil {
				key := LineKey{ActivityID: *order.ActivityID, RubroID: *order.RubroID}
				bucket := data.Line[key]
				bucket.add(programa, concurrente)
				data.Line[key] = bucket
			}
		}
	}

	return data
}

// ExecutionService recomputes executed amounts and traffic lights for a
// project hierarchy from its purchase order feed.
type ExecutionService struct {
	projectRepo     repository.ProjectRepository
	stageRepo       repository.StageRepository
	activityRepo    repository.ActivityRepository
	lineRepo        repository.BudgetLineRepository
	orderRepo       repository.PurchaseOrderRepository
	transferRepo    repository.TransferRepository
	notificationSvc *NotificationService
	companyCurrency string
}

// NewExecutionService creates a new execution service
func NewExecutionService(
	projectRepo repository.ProjectRepository,
	stageRepo repository.StageRepository,
	activityRepo repository.ActivityRepository,
	lineRepo repository.BudgetLineRepository,
	orderRepo repository.PurchaseOrderRepository,
	transferRepo repository.TransferRepository,
	notificationSvc *NotificationService,
	companyCurrency string,
) *ExecutionService {
	return &ExecutionService{
		projectRepo:     projectRepo,
		stageRepo:       stageRepo,
		activityRepo:    activityRepo,
		lineRepo:        lineRepo,
		orderRepo:       orderRepo,
		transferRepo:    transferRepo,
		notificationSvc: notificationSvc,
		companyCurrency: companyCurrency,
	}
}

// Collect aggregates the current execution of a project without
// persisting anything.
func (s *ExecutionService) Collect(ctx context.Context, projectID uint) (*ExecutionData, error) {
	project, err := s.projectRepo.FindByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	activities, err := s.activityRepo.FindByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	orders, err := s.orderRepo.FindByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return CollectFromOrders(project, activities, orders, s.companyCurrency), nil
}

// SyncProject recomputes executed amounts and traffic lights for the
// whole hierarchy of a project and persists the result. Running it
// twice in a row is a no-op.
func (s *ExecutionService) SyncProject(ctx context.Context, projectID uint) error {
	project, err := s.projectRepo.FindByID(ctx, projectID)
	if err != nil {
		return err
	}
	activities, err := s.activityRepo.FindByProject(ctx, projectID)
	if err != nil {
		return err
	}
	lines, err := s.lineRepo.FindByProject(ctx, projectID)
	if err != nil {
		return err
	}
	orders, err := s.orderRepo.FindByProject(ctx, projectID)
	if err != nil {
		return err
	}
	touched, err := s.transferRepo.TouchedLineIDs(ctx, projectID)
	if err != nil {
		return err
	}

	data := CollectFromOrders(project, activities, orders, s.companyCurrency)

	var overExecuted []string

	// Lines carry the assigned amounts; executed and color come from
	// the aggregation.
	assignedByActivity := make(map[uint]ExecutionAmounts)
	for i := range lines {
		line := &lines[i]
		exec := data.Line[LineKey{ActivityID: line.ActivityID, RubroID: line.RubroID}]
		line.ExecutedPrograma = exec.Programa
		line.ExecutedConcurrente = exec.Concurrente
		line.ExecutedTotal = exec.Total
		line.TrafficLight = line.EvaluateTrafficLight(touched[line.ID])
		if err := s.lineRepo.Update(ctx, line); err != nil {
			return err
		}

		assigned := assignedByActivity[line.ActivityID]
		assigned.add(line.AssignedPrograma, line.AssignedConcurrente)
		assignedByActivity[line.ActivityID] = assigned

		if line.OverExecuted() {
			overExecuted = append(overExecuted, line.Rubro.Name)
		}
	}

	// Activity allocations are always the sum of their lines. Above
	// line level the status is binary: executed versus allocated.
	assignedByStage := make(map[uint]ExecutionAmounts)
	for i := range activities {
		activity := &activities[i]
		assigned := assignedByActivity[activity.ID]
		exec := data.Activity[activity.ID]
		activity.AssignedPrograma = assigned.Programa
		activity.AssignedConcurrente = assigned.Concurrente
		activity.AssignedTotal = assigned.Total
		activity.ExecutedPrograma = exec.Programa
		activity.ExecutedConcurrente = exec.Concurrente
		activity.ExecutedTotal = exec.Total
		activity.TrafficLight = models.AggregateTrafficLight(activity.AssignedTotal, exec.Total)
		if err := s.activityRepo.Update(ctx, activity); err != nil {
			return err
		}

		stageAssigned := assignedByStage[activity.StageID]
		stageAssigned.add(assigned.Programa, assigned.Concurrente)
		assignedByStage[activity.StageID] = stageAssigned
	}

	stages, err := s.stageRepo.FindByProject(ctx, projectID)
	if err != nil {
		return err
	}

	// Stage and project allocations are authoritative inputs, never
	// overwritten here. Children exceeding them is surfaced as a soft
	// inconsistency message, not a failure.
	var stageAssignedSum float64
	for i := range stages {
		stage := &stages[i]
		exec := data.Stage[stage.ID]
		stage.ExecutedPrograma = exec.Programa
		stage.ExecutedConcurrente = exec.Concurrente
		stage.ExecutedTotal = exec.Total
		stage.TrafficLight = models.AggregateTrafficLight(stage.AssignedTotal, exec.Total)
		stage.InconsistencyMsg = ""
		if children := assignedByStage[stage.ID]; children.Total > stage.AssignedTotal+models.SplitTolerance {
			stage.InconsistencyMsg = fmt.Sprintf(
				"La suma de actividades (%.2f) excede el monto asignado de la etapa (%.2f)",
				children.Total, stage.AssignedTotal)
		}
		if err := s.stageRepo.Update(ctx, stage); err != nil {
			return err
		}

		stageAssignedSum += stage.AssignedTotal
	}

	project.ExecutedPrograma = data.Project.Programa
	project.ExecutedConcurrente = data.Project.Concurrente
	project.ExecutedTotal = data.Project.Total
	project.TrafficLight = models.AggregateTrafficLight(project.AssignedTotal, data.Project.Total)
	project.InconsistencyMsg = ""
	if stageAssignedSum > project.AssignedTotal+models.SplitTolerance {
		project.InconsistencyMsg = fmt.Sprintf(
			"La suma de etapas (%.2f) excede el monto asignado del proyecto (%.2f)",
			stageAssignedSum, project.AssignedTotal)
	}
	if err := s.projectRepo.Update(ctx, project); err != nil {
		return err
	}

	// Over-execution never blocks the feed, it only gets surfaced.
	if len(overExecuted) > 0 && s.notificationSvc != nil {
		msg := fmt.Sprintf("El proyecto %s tiene %d rubro(s) sobre-ejercido(s): %v",
			project.Code, len(overExecuted), overExecuted)
		if err := s.notificationSvc.NotifyAdmins(ctx, "Presupuesto sobre-ejercido", msg, models.NotificationTypeOverExecuted); err != nil {
			logger.Log.Error("failed to notify over-execution", "project_id", projectID, "error", err)
		}
	}

	return nil
}

// SyncAll recomputes every project. Used by the scheduled resync job.
func (s *ExecutionService) SyncAll(ctx context.Context) error {
	projects, err := s.projectRepo.FindAll(ctx)
	if err != nil {
		return err
	}
	for _, project := range projects {
		if err := s.SyncProject(ctx, project.ID); err != nil {
			logger.Log.Error("execution sync failed", "project_id", project.ID, "error", err)
		}
	}
	return nil
}
