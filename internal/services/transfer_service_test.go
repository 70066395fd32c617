package services

import (
	"context"
	"errors"
	"testing"

	"github.com/secihti/budget-api/internal/models"
	"github.com/secihti/budget-api/internal/repository"
	"github.com/secihti/budget-api/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// In-memory store standing in for the transactional view. Capacity
// failures happen before any mutation, so the missing rollback does not
// affect what the tests assert.
type fakeTransferStore struct {
	transfers  map[uint]*models.BudgetTransfer
	lines      map[uint]*models.BudgetLine
	project    *models.Project
	activities []models.Activity
	orders     []models.PurchaseOrder
}

func (f *fakeTransferStore) FindTransfer(id uint) (*models.BudgetTransfer, error) {
	t, ok := f.transfers[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	return t, nil
}

func (f *fakeTransferStore) LockLine(id uint) (*models.BudgetLine, error) {
	l, ok := f.lines[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	return l, nil
}

func (f *fakeTransferStore) SaveLine(line *models.BudgetLine) error { return nil }

func (f *fakeTransferStore) SaveTransfer(t *models.BudgetTransfer) error { return nil }

func (f *fakeTransferStore) DeleteTransfer(id uint) error {
	delete(f.transfers, id)
	return nil
}

func (f *fakeTransferStore) FindProject(id uint) (*models.Project, error) {
	return f.project, nil
}

func (f *fakeTransferStore) ActivitiesByProject(projectID uint) ([]models.Activity, error) {
	return f.activities, nil
}

func (f *fakeTransferStore) OrdersByProject(projectID uint) ([]models.PurchaseOrder, error) {
	return f.orders, nil
}

type fakeTransferRepo struct {
	repository.TransferRepository
	store  *fakeTransferStore
	nextID uint
}

func (m *fakeTransferRepo) FindByID(ctx context.Context, id uint) (*models.BudgetTransfer, error) {
	return m.store.FindTransfer(id)
}

func (m *fakeTransferRepo) Create(ctx context.Context, t *models.BudgetTransfer) error {
	m.nextID++
	t.ID = m.nextID
	m.store.transfers[t.ID] = t
	return nil
}

func (m *fakeTransferRepo) Update(ctx context.Context, t *models.BudgetTransfer) error { return nil }

func (m *fakeTransferRepo) Delete(ctx context.Context, id uint) error {
	delete(m.store.transfers, id)
	return nil
}

func (m *fakeTransferRepo) TouchedLineIDs(ctx context.Context, projectID uint) (map[uint]bool, error) {
	return map[uint]bool{}, nil
}

func (m *fakeTransferRepo) InTransaction(ctx context.Context, fn func(store repository.TransferStore) error) error {
	return fn(m.store)
}

type fakeLineRepo struct {
	repository.BudgetLineRepository
	lines map[uint]*models.BudgetLine
}

func (m *fakeLineRepo) FindByID(ctx context.Context, id uint) (*models.BudgetLine, error) {
	l, ok := m.lines[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	return l, nil
}

func (m *fakeLineRepo) FindByProject(ctx context.Context, projectID uint) ([]models.BudgetLine, error) {
	var out []models.BudgetLine
	for _, l := range m.lines {
		out = append(out, *l)
	}
	return out, nil
}

func (m *fakeLineRepo) Update(ctx context.Context, line *models.BudgetLine) error { return nil }

type fakeStageRepo struct {
	repository.StageRepository
	stage *models.Stage
}

func (m *fakeStageRepo) FindByID(ctx context.Context, id uint) (*models.Stage, error) {
	if m.stage == nil || m.stage.ID != id {
		return nil, errors.New("record not found")
	}
	return m.stage, nil
}

func (m *fakeStageRepo) FindByProject(ctx context.Context, projectID uint) ([]models.Stage, error) {
	if m.stage == nil {
		return nil, nil
	}
	return []models.Stage{*m.stage}, nil
}

func (m *fakeStageRepo) Update(ctx context.Context, stage *models.Stage) error { return nil }

type fakeProjectRepo struct {
	repository.ProjectRepository
	project *models.Project
}

func (m *fakeProjectRepo) FindByID(ctx context.Context, id uint) (*models.Project, error) {
	return m.project, nil
}

func (m *fakeProjectRepo) Update(ctx context.Context, project *models.Project) error { return nil }

type fakeActivityRepo struct {
	repository.ActivityRepository
	activities []models.Activity
}

func (m *fakeActivityRepo) FindByProject(ctx context.Context, projectID uint) ([]models.Activity, error) {
	return m.activities, nil
}

func (m *fakeActivityRepo) Update(ctx context.Context, activity *models.Activity) error { return nil }

type fakeOrderRepo struct {
	repository.PurchaseOrderRepository
	orders []models.PurchaseOrder
}

func (m *fakeOrderRepo) FindByProject(ctx context.Context, projectID uint) ([]models.PurchaseOrder, error) {
	return m.orders, nil
}

type fakeNotificationRepo struct {
	repository.NotificationRepository
}

func (m *fakeNotificationRepo) Create(ctx context.Context, n *models.Notification) error { return nil }

type fakeUserRepo struct {
	repository.UserRepository
}

func (m *fakeUserRepo) FindAdmins(ctx context.Context) ([]models.User, error) { return nil, nil }

type recordingAudit struct {
	entries []models.AuditLog
}

func (m *recordingAudit) Log(ctx context.Context, userID uint, action, entity string, entityID uint, details, ip, userAgent string) error {
	m.entries = append(m.entries, models.AuditLog{
		UserID: userID, Action: action, Entity: entity, EntityID: entityID, Details: details,
	})
	return nil
}

func (m *recordingAudit) byAction(action string) *models.AuditLog {
	for i := range m.entries {
		if m.entries[i].Action == action {
			return &m.entries[i]
		}
	}
	return nil
}

func uintPtr(v uint) *uint { return &v }

// newTransferFixture builds a service over a 75/25 project with two
// lines in one stage and a confirmed order executing part of the source
// line.
func newTransferFixture() (*TransferService, *fakeTransferStore) {
	logger.Setup("test")

	project := &models.Project{
		ID:             1,
		Code:           "PROJ-001",
		Currency:       "MXN",
		PctPrograma:    75,
		PctConcurrente: 25,
	}
	stage := &models.Stage{ID: 1, ProjectID: 1, Name: "Etapa 1", Project: *project}

	lineFrom := &models.BudgetLine{
		ID: 1, ActivityID: 10, RubroID: 100, StageID: 1,
		AssignedPrograma: 750, AssignedConcurrente: 250, AssignedTotal: 1000,
	}
	lineTo := &models.BudgetLine{
		ID: 2, ActivityID: 10, RubroID: 200, StageID: 1,
	}

	activities := []models.Activity{{ID: 10, StageID: 1}}
	orders := []models.PurchaseOrder{
		{
			ID: 1, OrderRef: "OC-001", ProjectID: 1,
			ActivityID: uintPtr(10), RubroID: uintPtr(100),
			Status: models.PurchaseStatusDone, Currency: "MXN", Amount: 200,
		},
	}

	store := &fakeTransferStore{
		transfers:  map[uint]*models.BudgetTransfer{},
		lines:      map[uint]*models.BudgetLine{1: lineFrom, 2: lineTo},
		project:    project,
		activities: activities,
		orders:     orders,
	}

	transferRepo := &fakeTransferRepo{store: store}
	lineRepo := &fakeLineRepo{lines: store.lines}
	stageRepo := &fakeStageRepo{stage: stage}
	notifSvc := NewNotificationService(&fakeNotificationRepo{}, &fakeUserRepo{})

	execSvc := NewExecutionService(
		&fakeProjectRepo{project: project},
		stageRepo,
		&fakeActivityRepo{activities: activities},
		lineRepo,
		&fakeOrderRepo{orders: orders},
		transferRepo,
		notifSvc,
		"MXN",
	)

	svc := NewTransferService(transferRepo, lineRepo, stageRepo, execSvc, notifSvc, nil, "MXN")
	return svc, store
}

func TestTransferService_Create_SplitsTotal(t *testing.T) {
	svc, _ := newTransferFixture()

	transfer, err := svc.Create(context.Background(), &TransferInput{
		StageID:       1,
		LineFromID:    1,
		LineToID:      2,
		MontoTotal:    400,
		Justificacion: "reasignación de materiales",
	}, 1)

	require.NoError(t, err)
	assert.Equal(t, models.TransferStatusDraft, transfer.Status)
	assert.InDelta(t, 300.0, transfer.MontoPrograma, 0.001)
	assert.InDelta(t, 100.0, transfer.MontoConcurrente, 0.001)
	assert.InDelta(t, 400.0, transfer.MontoTotal, 0.001)
}

func TestTransferService_Create_RejectsSameLine(t *testing.T) {
	svc, _ := newTransferFixture()

	_, err := svc.Create(context.Background(), &TransferInput{
		StageID:       1,
		LineFromID:    1,
		LineToID:      1,
		MontoPrograma: 100,
		Justificacion: "x",
	}, 1)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestTransferService_Create_RejectsCrossStage(t *testing.T) {
	svc, store := newTransferFixture()
	store.lines[3] = &models.BudgetLine{ID: 3, ActivityID: 20, RubroID: 100, StageID: 2}

	_, err := svc.Create(context.Background(), &TransferInput{
		StageID:       1,
		LineFromID:    1,
		LineToID:      3,
		MontoPrograma: 100,
		Justificacion: "x",
	}, 1)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestTransferService_Create_RejectsZeroAmount(t *testing.T) {
	svc, _ := newTransferFixture()

	_, err := svc.Create(context.Background(), &TransferInput{
		StageID:       1,
		LineFromID:    1,
		LineToID:      2,
		Justificacion: "x",
	}, 1)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestTransferService_Confirm_MovesBalances(t *testing.T) {
	svc, store := newTransferFixture()

	draft, err := svc.Create(context.Background(), &TransferInput{
		StageID:          1,
		LineFromID:       1,
		LineToID:         2,
		MontoPrograma:    225,
		MontoConcurrente: 75,
		Justificacion:    "compra de equipo",
	}, 1)
	require.NoError(t, err)

	confirmed, err := svc.Confirm(context.Background(), draft.ID, 1)
	require.NoError(t, err)

	assert.Equal(t, models.TransferStatusConfirmed, confirmed.Status)
	assert.NotNil(t, confirmed.ConfirmedAt)

	from := store.lines[1]
	to := store.lines[2]
	assert.InDelta(t, 525.0, from.AssignedPrograma, 0.001)
	assert.InDelta(t, 175.0, from.AssignedConcurrente, 0.001)
	assert.InDelta(t, 700.0, from.AssignedTotal, 0.001)
	assert.InDelta(t, 225.0, to.AssignedPrograma, 0.001)
	assert.InDelta(t, 75.0, to.AssignedConcurrente, 0.001)
	assert.InDelta(t, 300.0, to.AssignedTotal, 0.001)
}

func TestTransferService_Confirm_InsufficientBalance(t *testing.T) {
	svc, store := newTransferFixture()

	// The confirmed order already executed 150 of the programa
	// component, leaving 600 transferable.
	draft, err := svc.Create(context.Background(), &TransferInput{
		StageID:       1,
		LineFromID:    1,
		LineToID:      2,
		MontoPrograma: 700,
		Justificacion: "excede el saldo",
	}, 1)
	require.NoError(t, err)

	_, err = svc.Confirm(context.Background(), draft.ID, 1)

	var berr *InsufficientBalanceError
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, ComponentPrograma, berr.Component)
	assert.InDelta(t, 600.0, berr.Available, 0.001)
	assert.InDelta(t, 700.0, berr.Requested, 0.001)

	// No balance moved and the transfer stayed in draft.
	from := store.lines[1]
	to := store.lines[2]
	assert.InDelta(t, 750.0, from.AssignedPrograma, 0.001)
	assert.InDelta(t, 250.0, from.AssignedConcurrente, 0.001)
	assert.InDelta(t, 0.0, to.AssignedPrograma, 0.001)
	assert.Equal(t, models.TransferStatusDraft, store.transfers[draft.ID].Status)
}

func TestTransferService_Confirm_OnlyDraft(t *testing.T) {
	svc, store := newTransferFixture()

	draft, err := svc.Create(context.Background(), &TransferInput{
		StageID:       1,
		LineFromID:    1,
		LineToID:      2,
		MontoPrograma: 100,
		Justificacion: "x",
	}, 1)
	require.NoError(t, err)

	_, err = svc.Confirm(context.Background(), draft.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, models.TransferStatusConfirmed, store.transfers[draft.ID].Status)

	_, err = svc.Confirm(context.Background(), draft.ID, 1)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestTransferService_Delete_ReversesConfirmed(t *testing.T) {
	svc, store := newTransferFixture()

	draft, err := svc.Create(context.Background(), &TransferInput{
		StageID:          1,
		LineFromID:       1,
		LineToID:         2,
		MontoPrograma:    225,
		MontoConcurrente: 75,
		Justificacion:    "compra de equipo",
	}, 1)
	require.NoError(t, err)

	_, err = svc.Confirm(context.Background(), draft.ID, 1)
	require.NoError(t, err)

	err = svc.Delete(context.Background(), draft.ID, 1)
	require.NoError(t, err)

	from := store.lines[1]
	to := store.lines[2]
	assert.InDelta(t, 750.0, from.AssignedPrograma, 0.001)
	assert.InDelta(t, 250.0, from.AssignedConcurrente, 0.001)
	assert.InDelta(t, 1000.0, from.AssignedTotal, 0.001)
	assert.InDelta(t, 0.0, to.AssignedPrograma, 0.001)
	assert.InDelta(t, 0.0, to.AssignedConcurrente, 0.001)

	_, ok := store.transfers[draft.ID]
	assert.False(t, ok)
}

func TestTransferService_Confirm_AuditsBothLines(t *testing.T) {
	svc, _ := newTransferFixture()
	audit := &recordingAudit{}
	svc.auditSvc = audit

	draft, err := svc.Create(context.Background(), &TransferInput{
		StageID:          1,
		LineFromID:       1,
		LineToID:         2,
		MontoPrograma:    225,
		MontoConcurrente: 75,
		Justificacion:    "compra de equipo",
	}, 1)
	require.NoError(t, err)

	_, err = svc.Confirm(context.Background(), draft.ID, 1)
	require.NoError(t, err)

	out := audit.byAction("TRANSFER_OUT")
	require.NotNil(t, out)
	assert.Equal(t, "BudgetLine", out.Entity)
	assert.Equal(t, uint(1), out.EntityID)
	assert.Contains(t, out.Details, draft.Folio)
	assert.Contains(t, out.Details, "225.00")
	assert.Contains(t, out.Details, "75.00")

	in := audit.byAction("TRANSFER_IN")
	require.NotNil(t, in)
	assert.Equal(t, "BudgetLine", in.Entity)
	assert.Equal(t, uint(2), in.EntityID)
}

func TestTransferService_Delete_AuditsReversedDirections(t *testing.T) {
	svc, _ := newTransferFixture()
	audit := &recordingAudit{}
	svc.auditSvc = audit

	draft, err := svc.Create(context.Background(), &TransferInput{
		StageID:          1,
		LineFromID:       1,
		LineToID:         2,
		MontoPrograma:    225,
		MontoConcurrente: 75,
		Justificacion:    "compra de equipo",
	}, 1)
	require.NoError(t, err)

	_, err = svc.Confirm(context.Background(), draft.ID, 1)
	require.NoError(t, err)

	audit.entries = nil
	require.NoError(t, svc.Delete(context.Background(), draft.ID, 1))

	// The money flows back, so the destination line logs the outgoing
	// row and the origin line the incoming one.
	out := audit.byAction("TRANSFER_OUT")
	require.NotNil(t, out)
	assert.Equal(t, uint(2), out.EntityID)

	in := audit.byAction("TRANSFER_IN")
	require.NotNil(t, in)
	assert.Equal(t, uint(1), in.EntityID)
}

func TestTransferService_Delete_BlockedBelowExecutedSpend(t *testing.T) {
	svc, store := newTransferFixture()

	draft, err := svc.Create(context.Background(), &TransferInput{
		StageID:          1,
		LineFromID:       1,
		LineToID:         2,
		MontoPrograma:    225,
		MontoConcurrente: 75,
		Justificacion:    "compra de equipo",
	}, 1)
	require.NoError(t, err)

	_, err = svc.Confirm(context.Background(), draft.ID, 1)
	require.NoError(t, err)

	// After confirmation a purchase spends most of the money that
	// arrived on the destination line. Reversing would leave the line
	// allocated below what was already executed.
	store.orders = append(store.orders, models.PurchaseOrder{
		ID: 2, OrderRef: "OC-002", ProjectID: 1,
		ActivityID: uintPtr(10), RubroID: uintPtr(200),
		Status: models.PurchaseStatusDone, Currency: "MXN", Amount: 400,
	})

	err = svc.Delete(context.Background(), draft.ID, 1)

	var nerr *NegativeResultError
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, ComponentPrograma, nerr.Component)
	assert.Equal(t, uint(2), nerr.LineID)

	// The transfer survives the failed reversal.
	_, ok := store.transfers[draft.ID]
	assert.True(t, ok)
}

func TestTransferService_Amend_BlockedBelowExecutedSpend(t *testing.T) {
	svc, store := newTransferFixture()

	draft, err := svc.Create(context.Background(), &TransferInput{
		StageID:          1,
		LineFromID:       1,
		LineToID:         2,
		MontoPrograma:    225,
		MontoConcurrente: 75,
		Justificacion:    "compra de equipo",
	}, 1)
	require.NoError(t, err)

	_, err = svc.Confirm(context.Background(), draft.ID, 1)
	require.NoError(t, err)

	store.orders = append(store.orders, models.PurchaseOrder{
		ID: 2, OrderRef: "OC-002", ProjectID: 1,
		ActivityID: uintPtr(10), RubroID: uintPtr(200),
		Status: models.PurchaseStatusDone, Currency: "MXN", Amount: 400,
	})

	// Shrinking the transfer reverses the original movement first,
	// which would drop the destination below its executed spend.
	_, err = svc.Amend(context.Background(), draft.ID, &TransferInput{
		StageID:          1,
		LineFromID:       1,
		LineToID:         2,
		MontoPrograma:    150,
		MontoConcurrente: 50,
		Justificacion:    "monto corregido",
	}, 1)

	var nerr *NegativeResultError
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, uint(2), nerr.LineID)
}

func TestTransferService_Amend_ReappliesNewAmounts(t *testing.T) {
	svc, store := newTransferFixture()

	draft, err := svc.Create(context.Background(), &TransferInput{
		StageID:          1,
		LineFromID:       1,
		LineToID:         2,
		MontoPrograma:    225,
		MontoConcurrente: 75,
		Justificacion:    "compra de equipo",
	}, 1)
	require.NoError(t, err)

	_, err = svc.Confirm(context.Background(), draft.ID, 1)
	require.NoError(t, err)

	amended, err := svc.Amend(context.Background(), draft.ID, &TransferInput{
		StageID:          1,
		LineFromID:       1,
		LineToID:         2,
		MontoPrograma:    150,
		MontoConcurrente: 50,
		Justificacion:    "monto corregido",
	}, 1)
	require.NoError(t, err)

	assert.InDelta(t, 150.0, amended.MontoPrograma, 0.001)
	assert.InDelta(t, 50.0, amended.MontoConcurrente, 0.001)
	assert.InDelta(t, 200.0, amended.MontoTotal, 0.001)

	from := store.lines[1]
	to := store.lines[2]
	assert.InDelta(t, 600.0, from.AssignedPrograma, 0.001)
	assert.InDelta(t, 200.0, from.AssignedConcurrente, 0.001)
	assert.InDelta(t, 150.0, to.AssignedPrograma, 0.001)
	assert.InDelta(t, 50.0, to.AssignedConcurrente, 0.001)
}

func TestTransferService_Update_FreezesConfirmedAmounts(t *testing.T) {
	svc, _ := newTransferFixture()

	draft, err := svc.Create(context.Background(), &TransferInput{
		StageID:          1,
		LineFromID:       1,
		LineToID:         2,
		MontoPrograma:    225,
		MontoConcurrente: 75,
		Justificacion:    "compra de equipo",
	}, 1)
	require.NoError(t, err)

	_, err = svc.Confirm(context.Background(), draft.ID, 1)
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), draft.ID, &TransferInput{
		StageID:          1,
		LineFromID:       1,
		LineToID:         2,
		MontoPrograma:    500,
		MontoConcurrente: 75,
		Justificacion:    "intento de cambio",
	}, 1)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	// Justification alone is editable after confirmation.
	updated, err := svc.Update(context.Background(), draft.ID, &TransferInput{
		StageID:          1,
		LineFromID:       1,
		LineToID:         2,
		MontoPrograma:    225,
		MontoConcurrente: 75,
		Justificacion:    "justificación ampliada",
	}, 1)
	require.NoError(t, err)
	assert.Equal(t, "justificación ampliada", updated.Justificacion)
}
