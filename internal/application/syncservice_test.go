package application_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/segsync/internal/application"
	"github.com/ericfisherdev/segsync/internal/domain/model"
	"github.com/ericfisherdev/segsync/internal/domain/port/driven"
)

// --- Mock implementations ---

type addCall struct {
	SegmentID string
	Emails    []string
}

type updateCall struct {
	AdAccountID string
	SegmentID   string
	Def         model.SegmentDefinition
}

// mockGateway records every mutation and appends each operation to ops so
// tests can assert ordering across the gateway and the store.
type mockGateway struct {
	segments map[string]string // listing served to the engine
	nextID   int

	listErr      error
	createErr    error
	updateErr    error
	addErr       error
	delMemberErr error
	delSegErr    error

	creates    []model.SegmentDefinition
	updates    []updateCall
	adds       []addCall
	delMembers []string
	delSegs    []string

	ops *[]string
}

func (m *mockGateway) record(op string) {
	if m.ops != nil {
		*m.ops = append(*m.ops, op)
	}
}

func (m *mockGateway) ListOrganizations(_ context.Context) ([]model.Organization, error) {
	return nil, nil
}

func (m *mockGateway) ListAdAccounts(_ context.Context, _ string) ([]model.AdAccount, error) {
	return nil, nil
}

func (m *mockGateway) ListSegments(_ context.Context, _ string) (map[string]string, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	listing := make(map[string]string, len(m.segments))
	for name, id := range m.segments {
		listing[name] = id
	}
	return listing, nil
}

func (m *mockGateway) CreateSegment(_ context.Context, _ string, def model.SegmentDefinition) (string, error) {
	if m.createErr != nil {
		return "", m.createErr
	}
	m.creates = append(m.creates, def)
	m.nextID++
	id := fmt.Sprintf("seg-%d", m.nextID)
	if m.segments == nil {
		m.segments = make(map[string]string)
	}
	m.segments[def.Name] = id
	m.record("create " + def.Name)
	return id, nil
}

func (m *mockGateway) UpdateSegment(_ context.Context, adAccountID, segmentID string, def model.SegmentDefinition) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updates = append(m.updates, updateCall{AdAccountID: adAccountID, SegmentID: segmentID, Def: def})
	m.record("update " + segmentID)
	return nil
}

func (m *mockGateway) AddMembers(_ context.Context, segmentID string, emails []string) (int, error) {
	if m.addErr != nil {
		return 0, m.addErr
	}
	m.adds = append(m.adds, addCall{SegmentID: segmentID, Emails: emails})
	m.record("add " + segmentID)
	return len(emails), nil
}

func (m *mockGateway) DeleteAllMembers(_ context.Context, segmentID string) error {
	if m.delMemberErr != nil {
		return m.delMemberErr
	}
	m.delMembers = append(m.delMembers, segmentID)
	m.record("delete-members " + segmentID)
	return nil
}

func (m *mockGateway) DeleteSegment(_ context.Context, segmentID string) error {
	if m.delSegErr != nil {
		return m.delSegErr
	}
	m.delSegs = append(m.delSegs, segmentID)
	m.record("delete-segment " + segmentID)
	return nil
}

type recordCall struct {
	ID      string
	Name    string
	Members []model.User
}

type mockSegmentStore struct {
	usersByQuery map[string][]model.User
	matchErr     error
	recordErr    error
	deleteErr    error

	records []recordCall
	deletes []string

	ops *[]string
}

func (m *mockSegmentStore) record(op string) {
	if m.ops != nil {
		*m.ops = append(*m.ops, op)
	}
}

func (m *mockSegmentStore) SeedMembers(_ context.Context, _ []model.User) (int, error) {
	return 0, nil
}

func (m *mockSegmentStore) MembersMatching(_ context.Context, fragment string) ([]model.User, error) {
	if m.matchErr != nil {
		return nil, m.matchErr
	}
	return m.usersByQuery[fragment], nil
}

func (m *mockSegmentStore) RecordRemoteSegment(_ context.Context, id, name string, members []model.User) error {
	if m.recordErr != nil {
		return m.recordErr
	}
	m.records = append(m.records, recordCall{ID: id, Name: name, Members: members})
	m.record("record " + id)
	return nil
}

func (m *mockSegmentStore) DeleteRemoteSegment(_ context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deletes = append(m.deletes, id)
	m.record("delete-local " + id)
	return nil
}

func (m *mockSegmentStore) Members(_ context.Context, _ string) ([]model.User, error) {
	return nil, nil
}

func (m *mockSegmentStore) ListRemoteSegments(_ context.Context) ([]model.RemoteSegment, error) {
	return nil, nil
}

var _ driven.SegmentGateway = (*mockGateway)(nil)
var _ driven.SegmentStore = (*mockSegmentStore)(nil)

func makeMembers(prefix string, n int) []model.User {
	users := make([]model.User, 0, n)
	for i := 0; i < n; i++ {
		users = append(users, model.User{
			ID:       int64(i + 1),
			Username: fmt.Sprintf("%s%d", prefix, i),
			Email:    fmt.Sprintf("%s%d@example.com", prefix, i),
		})
	}
	return users
}

var twoDefs = []model.SegmentDefinition{
	{Name: "Alex Segment", MemberQuery: "alex"},
	{Name: "Brad Segment", MemberQuery: "brad"},
}

// --- Tests ---

func TestSyncAll_CreatesNewSegments(t *testing.T) {
	gateway := &mockGateway{}
	store := &mockSegmentStore{
		usersByQuery: map[string][]model.User{
			"alex": makeMembers("alex", 100),
			"brad": makeMembers("brad", 100),
		},
	}

	svc := application.NewSyncService(gateway, store, "acct-1", twoDefs)
	rep, err := svc.SyncAll(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, rep.Created)
	assert.Zero(t, rep.Updated)
	assert.Zero(t, rep.Failed)

	require.Len(t, gateway.creates, 2)
	require.Len(t, gateway.adds, 2)
	assert.Len(t, gateway.adds[0].Emails, 100)
	assert.Len(t, gateway.adds[1].Emails, 100)

	require.Len(t, store.records, 2)
	assert.Equal(t, "Alex Segment", store.records[0].Name)
	assert.Equal(t, "Brad Segment", store.records[1].Name)
}

func TestSyncAll_ExistingSegmentIsUpdated(t *testing.T) {
	gateway := &mockGateway{
		segments: map[string]string{"Alex Segment": "123"},
	}
	store := &mockSegmentStore{
		usersByQuery: map[string][]model.User{"alex": makeMembers("alex", 5)},
	}

	svc := application.NewSyncService(gateway, store, "acct-1",
		[]model.SegmentDefinition{{Name: "Alex Segment", MemberQuery: "alex"}})
	rep, err := svc.SyncAll(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, rep.Updated)
	assert.Zero(t, rep.Created)

	require.Len(t, gateway.updates, 1)
	assert.Equal(t, "123", gateway.updates[0].SegmentID)

	require.Len(t, gateway.adds, 1)
	assert.Equal(t, "123", gateway.adds[0].SegmentID)

	require.Len(t, store.records, 1)
	assert.Equal(t, "123", store.records[0].ID, "the pre-existing remote id must be recorded")
}

func TestSyncAll_SecondRunUpdatesNotDuplicates(t *testing.T) {
	gateway := &mockGateway{}
	store := &mockSegmentStore{
		usersByQuery: map[string][]model.User{
			"alex": makeMembers("alex", 3),
			"brad": makeMembers("brad", 3),
		},
	}

	svc := application.NewSyncService(gateway, store, "acct-1", twoDefs)

	_, err := svc.SyncAll(context.Background())
	require.NoError(t, err)
	rep, err := svc.SyncAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, rep.Updated, "second run must update, not create")
	assert.Len(t, gateway.creates, 2, "no duplicate creates across runs")
	assert.Len(t, gateway.updates, 2)

	// The member set is re-sent in full on every run; that is the contract.
	assert.Len(t, gateway.adds, 4)
	require.Len(t, store.records, 4)
	assert.Equal(t, store.records[0].ID, store.records[2].ID, "same remote id across runs")
}

func TestSyncAll_EmptyMemberSet_SkipsAddCall(t *testing.T) {
	gateway := &mockGateway{}
	store := &mockSegmentStore{usersByQuery: map[string][]model.User{}}

	svc := application.NewSyncService(gateway, store, "acct-1",
		[]model.SegmentDefinition{{Name: "Empty Segment", MemberQuery: "nobody"}})
	rep, err := svc.SyncAll(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, rep.Created, "a segment with zero members is still valid")
	assert.Empty(t, gateway.adds)
	require.Len(t, store.records, 1)
	assert.Empty(t, store.records[0].Members)
}

func TestSyncAll_SegmentFailure_ContinuesWithNext(t *testing.T) {
	gateway := &mockGateway{addErr: errors.New("boom")}
	store := &mockSegmentStore{
		usersByQuery: map[string][]model.User{
			"alex": makeMembers("alex", 2),
		},
	}

	svc := application.NewSyncService(gateway, store, "acct-1", twoDefs)
	rep, err := svc.SyncAll(context.Background())

	require.NoError(t, err, "a per-segment failure must not fail the pass")
	assert.Equal(t, 1, rep.Failed)
	// Brad Segment has no members, so it never hits the failing add call.
	assert.Equal(t, 2, rep.Created)

	// The failed segment must not be recorded locally.
	require.Len(t, store.records, 1)
	assert.Equal(t, "Brad Segment", store.records[0].Name)
}

func TestSyncAll_ListingFailure_AbortsPass(t *testing.T) {
	gateway := &mockGateway{listErr: &driven.APIError{Op: "list segments", Status: 500, Body: "oops"}}
	store := &mockSegmentStore{}

	svc := application.NewSyncService(gateway, store, "acct-1", twoDefs)
	_, err := svc.SyncAll(context.Background())

	require.Error(t, err)
	var apiErr *driven.APIError
	assert.ErrorAs(t, err, &apiErr)
	assert.Empty(t, gateway.creates)
}

func TestSyncAll_MemberResolutionFailure_SkipsSegment(t *testing.T) {
	gateway := &mockGateway{}
	store := &mockSegmentStore{matchErr: errors.New("db locked")}

	svc := application.NewSyncService(gateway, store, "acct-1", twoDefs)
	rep, err := svc.SyncAll(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, rep.Failed)
	assert.Empty(t, gateway.creates, "no remote mutation when members cannot be resolved")
}

func TestDeleteAll_RemoteBeforeLocal(t *testing.T) {
	var ops []string
	gateway := &mockGateway{
		segments: map[string]string{"Alex Segment": "123"},
		ops:      &ops,
	}
	store := &mockSegmentStore{ops: &ops}

	svc := application.NewSyncService(gateway, store, "acct-1",
		[]model.SegmentDefinition{{Name: "Alex Segment", MemberQuery: "alex"}})
	rep, err := svc.DeleteAll(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, rep.Deleted)
	assert.Equal(t, []string{
		"delete-members 123",
		"delete-segment 123",
		"delete-local 123",
	}, ops, "remote members, then remote segment, then local rows")
}

func TestDeleteAll_UnknownSegment_NoMutation(t *testing.T) {
	gateway := &mockGateway{segments: map[string]string{}}
	store := &mockSegmentStore{}

	svc := application.NewSyncService(gateway, store, "acct-1",
		[]model.SegmentDefinition{{Name: "Never Synced", MemberQuery: "x"}})
	rep, err := svc.DeleteAll(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, rep.Skipped)
	assert.Empty(t, gateway.delMembers)
	assert.Empty(t, gateway.delSegs)
	assert.Empty(t, store.deletes)
}

func TestDeleteAll_RemoteFailure_LeavesLocalUntouched(t *testing.T) {
	gateway := &mockGateway{
		segments:  map[string]string{"Alex Segment": "123"},
		delSegErr: errors.New("remote down"),
	}
	store := &mockSegmentStore{}

	svc := application.NewSyncService(gateway, store, "acct-1",
		[]model.SegmentDefinition{{Name: "Alex Segment", MemberQuery: "alex"}})
	rep, err := svc.DeleteAll(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, rep.Failed)
	assert.Empty(t, store.deletes, "local rows must survive a failed remote deletion")
}

func TestDeleteAll_MemberDeletionFailure_StopsThatSegment(t *testing.T) {
	gateway := &mockGateway{
		segments:     map[string]string{"Alex Segment": "123"},
		delMemberErr: errors.New("remote down"),
	}
	store := &mockSegmentStore{}

	svc := application.NewSyncService(gateway, store, "acct-1",
		[]model.SegmentDefinition{{Name: "Alex Segment", MemberQuery: "alex"}})
	rep, err := svc.DeleteAll(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, rep.Failed)
	assert.Empty(t, gateway.delSegs)
	assert.Empty(t, store.deletes)
}

func TestSyncAll_PerDefinitionAdAccount(t *testing.T) {
	gateway := &mockGateway{segments: map[string]string{"Alex Segment": "123"}}
	store := &mockSegmentStore{}

	defs := []model.SegmentDefinition{
		{Name: "Alex Segment", MemberQuery: "alex", AdAccountID: "acct-override"},
	}
	svc := application.NewSyncService(gateway, store, "acct-default", defs)
	_, err := svc.SyncAll(context.Background())

	require.NoError(t, err)
	require.Len(t, gateway.updates, 1)
	assert.Equal(t, "acct-override", gateway.updates[0].AdAccountID)
}
