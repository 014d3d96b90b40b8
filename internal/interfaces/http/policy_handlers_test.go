package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/travel-approval/internal/application/service"
	"github.com/garyjia/travel-approval/internal/domain/entity"
)

type fakePolicyService struct {
	policies  map[string]*entity.Policy
	lastMatch service.MatchRequest
	createErr error
}

func newFakePolicyService(policies ...*entity.Policy) *fakePolicyService {
	f := &fakePolicyService{policies: map[string]*entity.Policy{}}
	for _, p := range policies {
		f.policies[p.ID] = p
	}
	return f
}

func (f *fakePolicyService) List(context.Context) ([]*entity.Policy, error) {
	var out []*entity.Policy
	for _, p := range f.policies {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out, nil
}

func (f *fakePolicyService) Get(_ context.Context, id string) (*entity.Policy, error) {
	p, ok := f.policies[id]
	if !ok {
		return nil, fmt.Errorf("policy %s: %w", id, entity.ErrNotFound)
	}
	return p, nil
}

func (f *fakePolicyService) Create(_ context.Context, req service.PolicyRequest) (*entity.Policy, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	p := &entity.Policy{ID: req.ID, Name: req.Name, AppliesTo: req.AppliesTo, Priority: req.Priority, Steps: req.Steps, Active: true}
	f.policies[p.ID] = p
	return p, nil
}

func (f *fakePolicyService) Update(ctx context.Context, id string, req service.PolicyRequest) (*entity.Policy, error) {
	existing, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	existing.Name = req.Name
	existing.Priority = req.Priority
	return existing, nil
}

func (f *fakePolicyService) Deactivate(ctx context.Context, id string) (*entity.Policy, error) {
	p, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Active = false
	return p, nil
}

func (f *fakePolicyService) Preview(_ context.Context, req service.MatchRequest) (*service.MatchPreview, error) {
	f.lastMatch = req
	for _, p := range f.policies {
		if p.Active && p.AppliesToType(entity.SubjectType(req.Type)) {
			return &service.MatchPreview{
				Policy: p,
				Chain:  []entity.ChainStep{{Level: 1, Approver: "mgr-1", TimeoutHours: entity.DefaultStepTimeoutHours}},
			}, nil
		}
	}
	return nil, fmt.Errorf("%w: no policy for %s", entity.ErrNotFound, req.Type)
}

func travelPolicy() *entity.Policy {
	return &entity.Policy{
		ID: "travel-default", Name: "Travel", AppliesTo: "travel", Priority: 10, Active: true,
		Steps: []entity.PolicyStep{{Level: 1, Name: "Manager", ApproverType: entity.ApproverTypeManager}},
	}
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, into interface{}) {
	t.Helper()
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.True(t, envelope.Success)
	require.NoError(t, json.Unmarshal(envelope.Data, into))
}

func TestPolicyRoutes_ListAndGet(t *testing.T) {
	s := newTestServerWithPolicies(&fakeApprovalService{}, &fakeReportService{}, newFakePolicyService(travelPolicy()))

	rec := do(t, s, http.MethodGet, "/api/policies", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []entity.Policy
	decodeData(t, rec, &listed)
	require.Len(t, listed, 1)
	assert.Equal(t, "travel-default", listed[0].ID)

	rec = do(t, s, http.MethodGet, "/api/policies/travel-default", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got entity.Policy
	decodeData(t, rec, &got)
	assert.Len(t, got.Steps, 1)

	rec = do(t, s, http.MethodGet, "/api/policies/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeProblem(t, rec)["type"])
}

func TestPolicyRoutes_ListEmpty(t *testing.T) {
	s := newTestServer(&fakeApprovalService{}, &fakeReportService{})

	rec := do(t, s, http.MethodGet, "/api/policies", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"data":[]`)
}

func TestPolicyRoutes_Create(t *testing.T) {
	policies := newFakePolicyService()
	s := newTestServerWithPolicies(&fakeApprovalService{}, &fakeReportService{}, policies)

	rec := do(t, s, http.MethodPost, "/api/policies", service.PolicyRequest{
		ID: "expense-large", Name: "Large expenses", AppliesTo: "expense", Priority: 30,
		Steps: []entity.PolicyStep{
			{Level: 1, ApproverType: entity.ApproverTypeManager},
			{Level: 2, ApproverType: entity.ApproverTypeFinance},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Contains(t, policies.policies, "expense-large")
	assert.Len(t, policies.policies["expense-large"].Steps, 2)

	policies.createErr = fmt.Errorf("%w: policy expense-large already exists", entity.ErrInvalidArgument)
	rec = do(t, s, http.MethodPost, "/api/policies", service.PolicyRequest{ID: "expense-large", Name: "Again", AppliesTo: "expense"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", decodeProblem(t, rec)["type"])
}

func TestPolicyRoutes_BadJSON(t *testing.T) {
	s := newTestServer(&fakeApprovalService{}, &fakeReportService{})

	for _, route := range []struct{ method, path string }{
		{http.MethodPost, "/api/policies"},
		{http.MethodPut, "/api/policies/travel-default"},
		{http.MethodPost, "/api/policies/match"},
	} {
		req := httptest.NewRequest(route.method, route.path, bytes.NewBufferString("{"))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code, route.path)
	}
}

func TestPolicyRoutes_UpdateAndDeactivate(t *testing.T) {
	policies := newFakePolicyService(travelPolicy())
	s := newTestServerWithPolicies(&fakeApprovalService{}, &fakeReportService{}, policies)

	rec := do(t, s, http.MethodPut, "/api/policies/travel-default", service.PolicyRequest{Name: "Travel v2", AppliesTo: "travel", Priority: 15})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Travel v2", policies.policies["travel-default"].Name)

	rec = do(t, s, http.MethodDelete, "/api/policies/travel-default", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got entity.Policy
	decodeData(t, rec, &got)
	assert.False(t, got.Active)
	assert.Contains(t, policies.policies, "travel-default", "deactivation keeps the policy")

	rec = do(t, s, http.MethodDelete, "/api/policies/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodPut, "/api/policies/nope", service.PolicyRequest{Name: "x", AppliesTo: "travel"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPolicyRoutes_Match(t *testing.T) {
	policies := newFakePolicyService(travelPolicy())
	s := newTestServerWithPolicies(&fakeApprovalService{}, &fakeReportService{}, policies)

	rec := do(t, s, http.MethodPost, "/api/policies/match", service.MatchRequest{
		Type: "travel", OwnerID: "emp-1", Amount: 2500, Department: "Sales",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2500.0, policies.lastMatch.Amount)
	assert.Equal(t, "Sales", policies.lastMatch.Department)

	var preview service.MatchPreview
	decodeData(t, rec, &preview)
	require.NotNil(t, preview.Policy)
	assert.Equal(t, "travel-default", preview.Policy.ID)
	require.Len(t, preview.Chain, 1)
	assert.Equal(t, "mgr-1", preview.Chain[0].Approver)

	rec = do(t, s, http.MethodPost, "/api/policies/match", service.MatchRequest{Type: "expense", Amount: 10})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
