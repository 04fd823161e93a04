package service

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/crm-backend/internal/domain"
	"github.com/spec-kit/crm-backend/internal/events"
	"github.com/spec-kit/crm-backend/internal/repository"
)

// In-memory repository fakes. Lookup misses return pgx.ErrNoRows so the
// services' error mapping behaves exactly as with the real repositories.

type idSeq struct{ n int }

func (s *idSeq) next(prefix string) string {
	s.n++
	return prefix + "-" + strconv.Itoa(s.n)
}

type fakeStore struct {
	ids       idSeq
	users     map[string]*domain.User
	userOrder []string
	clients   map[string]*domain.Client
	lines     map[string]*domain.SupportLine
	funnels   map[string]*domain.Funnel
	stages    map[string]*domain.FunnelStage
	tickets   map[string]*domain.Ticket
	comments  []*domain.Comment
	transfers []*domain.TransferHistory
	roles     []domain.Role
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   map[string]*domain.User{},
		clients: map[string]*domain.Client{},
		lines:   map[string]*domain.SupportLine{},
		funnels: map[string]*domain.Funnel{},
		stages:  map[string]*domain.FunnelStage{},
		tickets: map[string]*domain.Ticket{},
	}
}

func (f *fakeStore) addUser(u *domain.User) *domain.User {
	if u.ID == "" {
		u.ID = f.ids.next("user")
	}
	u.CreatedAt = time.Now()
	f.users[u.ID] = u
	f.userOrder = append(f.userOrder, u.ID)
	return u
}

func (f *fakeStore) addClient(c *domain.Client) *domain.Client {
	if c.ID == "" {
		c.ID = f.ids.next("client")
	}
	f.clients[c.ID] = c
	return c
}

func (f *fakeStore) addLine(l *domain.SupportLine) *domain.SupportLine {
	if l.ID == "" {
		l.ID = f.ids.next("line")
	}
	f.lines[l.ID] = l
	return l
}

func (f *fakeStore) addFunnel(fn *domain.Funnel) *domain.Funnel {
	if fn.ID == "" {
		fn.ID = f.ids.next("funnel")
	}
	f.funnels[fn.ID] = fn
	return fn
}

func (f *fakeStore) addStage(st *domain.FunnelStage) *domain.FunnelStage {
	if st.ID == "" {
		st.ID = f.ids.next("stage")
	}
	f.stages[st.ID] = st
	return st
}

// --- users ---

type fakeUserRepo struct{ store *fakeStore }

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	r.store.addUser(user)
	return nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *domain.User) error {
	if _, ok := r.store.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	r.store.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	user, ok := r.store.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, id := range r.store.userOrder {
		if r.store.users[id].Email == email {
			copied := *r.store.users[id]
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeUserRepo) List(_ context.Context, filter repository.UserFilter) ([]domain.User, error) {
	var out []domain.User
	for _, id := range r.store.userOrder {
		u := r.store.users[id]
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		if filter.SupportLineID != nil && (u.SupportLineID == nil || *u.SupportLineID != *filter.SupportLineID) {
			continue
		}
		if filter.Active != nil && u.Active != *filter.Active {
			continue
		}
		out = append(out, *u)
	}
	return out, nil
}

func (r *fakeUserRepo) SetSupportLine(_ context.Context, userID string, lineID *string) error {
	user, ok := r.store.users[userID]
	if !ok {
		return pgx.ErrNoRows
	}
	user.SupportLineID = lineID
	return nil
}

func (r *fakeUserRepo) CountBySupportLine(_ context.Context, lineID string) (int, error) {
	count := 0
	for _, u := range r.store.users {
		if u.SupportLineID != nil && *u.SupportLineID == lineID {
			count++
		}
	}
	return count, nil
}

func (r *fakeUserRepo) EnsureRoles(_ context.Context, roles []domain.Role) error {
	r.store.roles = append([]domain.Role{}, roles...)
	return nil
}

// --- clients ---

type fakeClientRepo struct{ store *fakeStore }

func (r *fakeClientRepo) Create(_ context.Context, client *domain.Client) error {
	r.store.addClient(client)
	return nil
}

func (r *fakeClientRepo) Update(_ context.Context, client *domain.Client) error {
	if _, ok := r.store.clients[client.ID]; !ok {
		return pgx.ErrNoRows
	}
	r.store.clients[client.ID] = client
	return nil
}

func (r *fakeClientRepo) GetByID(_ context.Context, id string) (*domain.Client, error) {
	client, ok := r.store.clients[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *client
	return &copied, nil
}

func (r *fakeClientRepo) GetByExternalID(_ context.Context, channel domain.Channel, externalID string) (*domain.Client, error) {
	for _, c := range r.store.clients {
		if c.Channel == channel && c.ExternalID == externalID {
			copied := *c
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

// --- support lines ---

type fakeLineRepo struct{ store *fakeStore }

func (r *fakeLineRepo) Create(_ context.Context, line *domain.SupportLine) error {
	r.store.addLine(line)
	return nil
}

func (r *fakeLineRepo) Update(_ context.Context, line *domain.SupportLine) error {
	if _, ok := r.store.lines[line.ID]; !ok {
		return pgx.ErrNoRows
	}
	r.store.lines[line.ID] = line
	return nil
}

func (r *fakeLineRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.store.lines[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.store.lines, id)
	return nil
}

func (r *fakeLineRepo) GetByID(_ context.Context, id string) (*domain.SupportLine, error) {
	line, ok := r.store.lines[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *line
	return &copied, nil
}

func (r *fakeLineRepo) GetByCode(_ context.Context, code string) (*domain.SupportLine, error) {
	for _, l := range r.store.lines {
		if l.Code == code {
			copied := *l
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeLineRepo) List(_ context.Context, activeOnly bool) ([]domain.SupportLine, error) {
	var out []domain.SupportLine
	for _, l := range r.store.lines {
		if activeOnly && !l.IsActive {
			continue
		}
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r *fakeLineRepo) FirstActive(ctx context.Context) (*domain.SupportLine, error) {
	lines, _ := r.List(ctx, true)
	if len(lines) == 0 {
		return nil, pgx.ErrNoRows
	}
	return &lines[0], nil
}

// --- funnels ---

type fakeFunnelRepo struct{ store *fakeStore }

func (r *fakeFunnelRepo) Create(_ context.Context, funnel *domain.Funnel) error {
	r.store.addFunnel(funnel)
	return nil
}

func (r *fakeFunnelRepo) Update(_ context.Context, funnel *domain.Funnel) error {
	if _, ok := r.store.funnels[funnel.ID]; !ok {
		return pgx.ErrNoRows
	}
	r.store.funnels[funnel.ID] = funnel
	return nil
}

func (r *fakeFunnelRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.store.funnels[id]; !ok {
		return pgx.ErrNoRows
	}
	for stageID, st := range r.store.stages {
		if st.FunnelID == id {
			delete(r.store.stages, stageID)
		}
	}
	delete(r.store.funnels, id)
	return nil
}

func (r *fakeFunnelRepo) GetByID(_ context.Context, id string) (*domain.Funnel, error) {
	funnel, ok := r.store.funnels[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *funnel
	return &copied, nil
}

func (r *fakeFunnelRepo) List(_ context.Context, activeOnly bool) ([]domain.Funnel, error) {
	var out []domain.Funnel
	for _, f := range r.store.funnels {
		if activeOnly && !f.IsActive {
			continue
		}
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (r *fakeFunnelRepo) CreateStage(_ context.Context, stage *domain.FunnelStage) error {
	r.store.addStage(stage)
	return nil
}

func (r *fakeFunnelRepo) UpdateStage(_ context.Context, stage *domain.FunnelStage) error {
	if _, ok := r.store.stages[stage.ID]; !ok {
		return pgx.ErrNoRows
	}
	r.store.stages[stage.ID] = stage
	return nil
}

func (r *fakeFunnelRepo) DeleteStage(_ context.Context, id string) error {
	if _, ok := r.store.stages[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.store.stages, id)
	return nil
}

func (r *fakeFunnelRepo) GetStage(_ context.Context, id string) (*domain.FunnelStage, error) {
	stage, ok := r.store.stages[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *stage
	return &copied, nil
}

func (r *fakeFunnelRepo) ListStages(_ context.Context, funnelID string) ([]domain.FunnelStage, error) {
	var out []domain.FunnelStage
	for _, st := range r.store.stages {
		if st.FunnelID == funnelID {
			out = append(out, *st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (r *fakeFunnelRepo) GetStageByOrder(_ context.Context, funnelID string, sortOrder int) (*domain.FunnelStage, error) {
	for _, st := range r.store.stages {
		if st.FunnelID == funnelID && st.SortOrder == sortOrder && st.IsActive {
			copied := *st
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeFunnelRepo) StageOrderTaken(_ context.Context, funnelID string, sortOrder int) (bool, error) {
	for _, st := range r.store.stages {
		if st.FunnelID == funnelID && st.SortOrder == sortOrder {
			return true, nil
		}
	}
	return false, nil
}

// --- tickets ---

type fakeTicketRepo struct{ store *fakeStore }

func (r *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	ticket.ID = r.store.ids.next("ticket")
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	copied := *ticket
	r.store.tickets[ticket.ID] = &copied
	return nil
}

func (r *fakeTicketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	if _, ok := r.store.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	ticket.UpdatedAt = time.Now()
	copied := *ticket
	r.store.tickets[ticket.ID] = &copied
	return nil
}

func (r *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	ticket, ok := r.store.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *ticket
	return &copied, nil
}

func (r *fakeTicketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	var out []domain.Ticket
	for _, t := range r.store.tickets {
		if filter.ClientID != nil && t.ClientID != *filter.ClientID {
			continue
		}
		if filter.AssignedToID != nil && (t.AssignedToID == nil || *t.AssignedToID != *filter.AssignedToID) {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, t.Status) {
			continue
		}
		if filter.SearchTerm != nil && !strings.Contains(strings.ToLower(t.Title), strings.ToLower(*filter.SearchTerm)) {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func containsStatus(statuses []domain.TicketStatus, s domain.TicketStatus) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func (r *fakeTicketRepo) CountActiveByAssignee(_ context.Context, userID string) (int, error) {
	count := 0
	for _, t := range r.store.tickets {
		if t.AssignedToID != nil && *t.AssignedToID == userID && t.Status != domain.TicketStatusClosed {
			count++
		}
	}
	return count, nil
}

func (r *fakeTicketRepo) ListDue(_ context.Context, now time.Time, limit int) ([]domain.Ticket, error) {
	var out []domain.Ticket
	for _, t := range r.store.tickets {
		if t.DueDate == nil || !t.DueDate.Before(now) {
			continue
		}
		if t.Status != domain.TicketStatusNew && t.Status != domain.TicketStatusInProgress {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeTicketRepo) CountByStage(_ context.Context, stageID string) (int, error) {
	count := 0
	for _, t := range r.store.tickets {
		if t.FunnelStageID != nil && *t.FunnelStageID == stageID {
			count++
		}
	}
	return count, nil
}

func (r *fakeTicketRepo) CountByFunnel(_ context.Context, funnelID string) (int, error) {
	count := 0
	for _, t := range r.store.tickets {
		if t.FunnelStageID == nil {
			continue
		}
		if st, ok := r.store.stages[*t.FunnelStageID]; ok && st.FunnelID == funnelID {
			count++
		}
	}
	return count, nil
}

func (r *fakeTicketRepo) StageCounts(_ context.Context, funnelID string, _, _ time.Time) ([]repository.StageCount, error) {
	byStage := map[string]int{}
	for _, t := range r.store.tickets {
		if t.FunnelStageID == nil {
			continue
		}
		if st, ok := r.store.stages[*t.FunnelStageID]; ok && st.FunnelID == funnelID {
			byStage[st.ID]++
		}
	}
	var out []repository.StageCount
	for stageID, count := range byStage {
		out = append(out, repository.StageCount{StageID: stageID, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StageID < out[j].StageID })
	return out, nil
}

func (r *fakeTicketRepo) StatusCounts(_ context.Context, _, _ time.Time) (map[domain.TicketStatus]int, error) {
	out := map[domain.TicketStatus]int{}
	for _, t := range r.store.tickets {
		out[t.Status]++
	}
	return out, nil
}

func (r *fakeTicketRepo) AvgResolutionSeconds(_ context.Context, _, _ time.Time) (float64, error) {
	total, count := 0.0, 0
	for _, t := range r.store.tickets {
		if t.ClosedAt == nil {
			continue
		}
		total += t.ClosedAt.Sub(t.CreatedAt).Seconds()
		count++
	}
	if count == 0 {
		return 0, nil
	}
	return total / float64(count), nil
}

func (r *fakeTicketRepo) ClosedWithinDueCount(_ context.Context, _, _ time.Time) (int, int, error) {
	closed, withinDue := 0, 0
	for _, t := range r.store.tickets {
		if t.ClosedAt == nil {
			continue
		}
		closed++
		if t.DueDate == nil || !t.ClosedAt.After(*t.DueDate) {
			withinDue++
		}
	}
	return closed, withinDue, nil
}

func (r *fakeTicketRepo) OperatorAggregates(_ context.Context, _, _ time.Time) ([]repository.OperatorAggregate, error) {
	byOperator := map[string]*repository.OperatorAggregate{}
	for _, t := range r.store.tickets {
		if t.AssignedToID == nil {
			continue
		}
		agg, ok := byOperator[*t.AssignedToID]
		if !ok {
			agg = &repository.OperatorAggregate{OperatorID: *t.AssignedToID}
			byOperator[*t.AssignedToID] = agg
		}
		if t.Status == domain.TicketStatusClosed {
			agg.ClosedCount++
		} else {
			agg.OpenCount++
		}
	}
	var out []repository.OperatorAggregate
	for _, agg := range byOperator {
		out = append(out, *agg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OperatorID < out[j].OperatorID })
	return out, nil
}

// --- comments ---

type fakeCommentRepo struct{ store *fakeStore }

func (r *fakeCommentRepo) Create(_ context.Context, comment *domain.Comment) error {
	comment.ID = r.store.ids.next("comment")
	comment.CreatedAt = time.Now()
	copied := *comment
	r.store.comments = append(r.store.comments, &copied)
	return nil
}

func (r *fakeCommentRepo) Delete(_ context.Context, id string) error {
	for i, c := range r.store.comments {
		if c.ID == id {
			r.store.comments = append(r.store.comments[:i], r.store.comments[i+1:]...)
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *fakeCommentRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Comment, error) {
	var out []domain.Comment
	for _, c := range r.store.comments {
		if c.TicketID == ticketID {
			out = append(out, *c)
		}
	}
	return out, nil
}

// --- transfers ---

type fakeTransferRepo struct{ store *fakeStore }

func (r *fakeTransferRepo) Create(_ context.Context, transfer *domain.TransferHistory) error {
	transfer.ID = r.store.ids.next("transfer")
	transfer.CreatedAt = time.Now()
	copied := *transfer
	r.store.transfers = append(r.store.transfers, &copied)
	return nil
}

func (r *fakeTransferRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TransferHistory, error) {
	var out []domain.TransferHistory
	for _, tr := range r.store.transfers {
		if tr.TicketID == ticketID {
			out = append(out, *tr)
		}
	}
	return out, nil
}

func (r *fakeTransferRepo) CountsByUser(_ context.Context, _, _ time.Time) ([]repository.TransferCount, error) {
	byUser := map[string]*repository.TransferCount{}
	get := func(id string) *repository.TransferCount {
		tc, ok := byUser[id]
		if !ok {
			tc = &repository.TransferCount{UserID: id}
			byUser[id] = tc
		}
		return tc
	}
	for _, tr := range r.store.transfers {
		get(tr.ToUserID).Incoming++
		if tr.FromUserID != nil {
			get(*tr.FromUserID).Outgoing++
		}
	}
	var out []repository.TransferCount
	for _, tc := range byUser {
		out = append(out, *tc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// --- event capture ---

type capturingDispatcher struct {
	published []events.Event
}

func (d *capturingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.published = append(d.published, event)
	return nil
}

func (d *capturingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *capturingDispatcher) ofType(t events.EventType) []events.Event {
	var out []events.Event
	for _, e := range d.published {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// --- harness ---

type serviceHarness struct {
	store      *fakeStore
	tickets    *fakeTicketRepo
	users      *fakeUserRepo
	clients    *fakeClientRepo
	lines      *fakeLineRepo
	funnels    *fakeFunnelRepo
	comments   *fakeCommentRepo
	transfers  *fakeTransferRepo
	dispatcher *capturingDispatcher
	svc        *TicketService
}

func newServiceHarness() *serviceHarness {
	store := newFakeStore()
	h := &serviceHarness{
		store:      store,
		tickets:    &fakeTicketRepo{store: store},
		users:      &fakeUserRepo{store: store},
		clients:    &fakeClientRepo{store: store},
		lines:      &fakeLineRepo{store: store},
		funnels:    &fakeFunnelRepo{store: store},
		comments:   &fakeCommentRepo{store: store},
		transfers:  &fakeTransferRepo{store: store},
		dispatcher: &capturingDispatcher{},
	}
	h.svc = NewTicketService(TicketDependencies{
		TicketRepo:   h.tickets,
		ClientRepo:   h.clients,
		UserRepo:     h.users,
		LineRepo:     h.lines,
		FunnelRepo:   h.funnels,
		CommentRepo:  h.comments,
		TransferRepo: h.transfers,
		Dispatcher:   h.dispatcher,
	})
	return h
}

func strPtr(s string) *string { return &s }
