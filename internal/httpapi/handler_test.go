package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shamadu25/rave-queue-sub001/internal/models"
	"github.com/shamadu25/rave-queue-sub001/internal/settings"
	"github.com/shamadu25/rave-queue-sub001/internal/store"
)

type fakeStore struct {
	createFn       func(ctx context.Context, input store.CreateEntryInput) (models.QueueEntry, error)
	getFn          func(ctx context.Context, entryID string) (models.QueueEntry, bool, error)
	listFn         func(ctx context.Context, filter store.ListFilter) ([]models.QueueEntry, error)
	transitionFn   func(ctx context.Context, input store.TransitionInput) (models.QueueEntry, error)
	callNextFn     func(ctx context.Context, input store.CallNextInput) (models.QueueEntry, error)
	transferFn     func(ctx context.Context, input store.TransferInput) (models.QueueEntry, error)
	flowTransferFn func(ctx context.Context, input store.FlowTransferInput) (models.QueueEntry, error)
	departmentsFn  func(ctx context.Context, includeInternal bool) ([]models.Department, error)
	flowsFn        func(ctx context.Context) ([]models.ServiceFlow, error)
	transfersFn    func(ctx context.Context, entryID string) ([]models.TransferRecord, error)
	sessionFn      func(ctx context.Context, sessionID string) (store.Session, error)
	profileFn      func(ctx context.Context, userID string) (models.Profile, error)
}

func (f fakeStore) CreateEntry(ctx context.Context, input store.CreateEntryInput) (models.QueueEntry, error) {
	if f.createFn == nil {
		return models.QueueEntry{}, nil
	}
	return f.createFn(ctx, input)
}

func (f fakeStore) GetEntry(ctx context.Context, entryID string) (models.QueueEntry, bool, error) {
	if f.getFn == nil {
		return models.QueueEntry{}, false, nil
	}
	return f.getFn(ctx, entryID)
}

func (f fakeStore) ListEntries(ctx context.Context, filter store.ListFilter) ([]models.QueueEntry, error) {
	if f.listFn == nil {
		return nil, nil
	}
	return f.listFn(ctx, filter)
}

func (f fakeStore) Transition(ctx context.Context, input store.TransitionInput) (models.QueueEntry, error) {
	if f.transitionFn == nil {
		return models.QueueEntry{}, nil
	}
	return f.transitionFn(ctx, input)
}

func (f fakeStore) CallNext(ctx context.Context, input store.CallNextInput) (models.QueueEntry, error) {
	if f.callNextFn == nil {
		return models.QueueEntry{}, nil
	}
	return f.callNextFn(ctx, input)
}

func (f fakeStore) Transfer(ctx context.Context, input store.TransferInput) (models.QueueEntry, error) {
	if f.transferFn == nil {
		return models.QueueEntry{}, nil
	}
	return f.transferFn(ctx, input)
}

func (f fakeStore) FlowTransfer(ctx context.Context, input store.FlowTransferInput) (models.QueueEntry, error) {
	if f.flowTransferFn == nil {
		return models.QueueEntry{}, nil
	}
	return f.flowTransferFn(ctx, input)
}

func (f fakeStore) DeleteEntry(ctx context.Context, entryID string) error { return nil }

func (f fakeStore) ListDepartments(ctx context.Context, includeInternal bool) ([]models.Department, error) {
	if f.departmentsFn == nil {
		return nil, nil
	}
	return f.departmentsFn(ctx, includeInternal)
}

func (f fakeStore) ListServiceFlows(ctx context.Context) ([]models.ServiceFlow, error) {
	if f.flowsFn == nil {
		return nil, nil
	}
	return f.flowsFn(ctx)
}

func (f fakeStore) ListTransfers(ctx context.Context, entryID string) ([]models.TransferRecord, error) {
	if f.transfersFn == nil {
		return nil, nil
	}
	return f.transfersFn(ctx, entryID)
}

func (f fakeStore) ListOutboxEvents(ctx context.Context, after time.Time, afterID string, limit int) ([]store.OutboxEvent, error) {
	return nil, nil
}

func (f fakeStore) GetOffset(ctx context.Context, consumer string) (store.Offset, error) {
	return store.Offset{}, nil
}

func (f fakeStore) UpdateOffset(ctx context.Context, consumer string, offset store.Offset) error {
	return nil
}

func (f fakeStore) LoadSettings(ctx context.Context) (settings.Settings, error) {
	return settings.Defaults(), nil
}

func (f fakeStore) GetSession(ctx context.Context, sessionID string) (store.Session, error) {
	if f.sessionFn == nil {
		return store.Session{}, store.ErrSessionNotFound
	}
	return f.sessionFn(ctx, sessionID)
}

func (f fakeStore) GetProfile(ctx context.Context, userID string) (models.Profile, error) {
	if f.profileFn == nil {
		return models.Profile{}, store.ErrAccessDenied
	}
	return f.profileFn(ctx, userID)
}

const testEntryID = "7f8c9a2e-1d3b-4c5a-9e8f-0a1b2c3d4e5f"
const testFlowID = "0b1c2d3e-4f5a-6789-abcd-ef0123456789"

func settingsFn(s settings.Settings) func() settings.Settings {
	return func() settings.Settings { return s }
}

func doJSON(t *testing.T, handler http.Handler, method, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	return recorder
}

func TestCreateEntryValidation(t *testing.T) {
	handler := NewHandler(fakeStore{}, nil).Routes()

	recorder := doJSON(t, handler, http.MethodPost, "/api/entries", map[string]string{
		"full_name": "Jane Roe",
	})
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("missing department: status=%d, want 400", recorder.Code)
	}

	recorder = doJSON(t, handler, http.MethodPost, "/api/entries", map[string]string{
		"full_name":  "Jane Roe",
		"department": "Lab",
		"priority":   "urgent",
	})
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("bad priority: status=%d, want 400", recorder.Code)
	}
}

func TestCreateEntrySuccess(t *testing.T) {
	var got store.CreateEntryInput
	fake := fakeStore{
		createFn: func(ctx context.Context, input store.CreateEntryInput) (models.QueueEntry, error) {
			got = input
			return models.QueueEntry{ID: testEntryID, Token: "LAB-007", Status: models.StatusWaiting}, nil
		},
	}
	handler := NewHandler(fake, nil).Routes()

	recorder := doJSON(t, handler, http.MethodPost, "/api/entries", map[string]string{
		"full_name":  "Jane Roe",
		"department": "Lab",
		"priority":   "emergency",
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", recorder.Code, recorder.Body.String())
	}
	if got.Department != "Lab" || got.Priority != models.PriorityEmergency {
		t.Fatalf("input=%+v", got)
	}

	var entry models.QueueEntry
	if err := json.Unmarshal(recorder.Body.Bytes(), &entry); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if entry.Token != "LAB-007" || entry.Status != models.StatusWaiting {
		t.Fatalf("entry=%+v", entry)
	}
}

func TestCallNextQueueEmpty(t *testing.T) {
	fake := fakeStore{
		callNextFn: func(ctx context.Context, input store.CallNextInput) (models.QueueEntry, error) {
			return models.QueueEntry{}, store.ErrNoEntry
		},
	}
	handler := NewHandler(fake, nil).Routes()

	recorder := doJSON(t, handler, http.MethodPost, "/api/entries/actions/call-next", map[string]string{
		"department": "Lab",
	})
	if recorder.Code != http.StatusConflict {
		t.Fatalf("status=%d, want 409", recorder.Code)
	}
}

func TestTransitionInvalidState(t *testing.T) {
	fake := fakeStore{
		transitionFn: func(ctx context.Context, input store.TransitionInput) (models.QueueEntry, error) {
			return models.QueueEntry{}, store.ErrInvalidState
		},
	}
	handler := NewHandler(fake, nil).Routes()

	recorder := doJSON(t, handler, http.MethodPost, "/api/entries/"+testEntryID+"/actions/complete", map[string]string{})
	if recorder.Code != http.StatusConflict {
		t.Fatalf("status=%d, want 409", recorder.Code)
	}
}

func TestTransitionActionRouting(t *testing.T) {
	var gotAction string
	fake := fakeStore{
		transitionFn: func(ctx context.Context, input store.TransitionInput) (models.QueueEntry, error) {
			gotAction = input.Action
			return models.QueueEntry{ID: input.EntryID}, nil
		},
	}
	handler := NewHandler(fake, nil).Routes()

	for _, action := range []string{"call", "serve", "complete", "skip"} {
		recorder := doJSON(t, handler, http.MethodPost, "/api/entries/"+testEntryID+"/actions/"+action, map[string]string{})
		if recorder.Code != http.StatusOK {
			t.Fatalf("action %s: status=%d", action, recorder.Code)
		}
		if gotAction != action {
			t.Fatalf("action routed as %q, want %q", gotAction, action)
		}
	}

	recorder := doJSON(t, handler, http.MethodPost, "/api/entries/"+testEntryID+"/actions/recall", map[string]string{})
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("unknown action: status=%d, want 404", recorder.Code)
	}
}

func TestTransferSameDepartment(t *testing.T) {
	fake := fakeStore{
		transferFn: func(ctx context.Context, input store.TransferInput) (models.QueueEntry, error) {
			return models.QueueEntry{}, store.ErrSameDepartment
		},
	}
	handler := NewHandler(fake, nil).Routes()

	recorder := doJSON(t, handler, http.MethodPost, "/api/entries/"+testEntryID+"/actions/transfer", map[string]string{
		"to_department": "Lab",
	})
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400", recorder.Code)
	}
}

func TestTransferDisabledBySettings(t *testing.T) {
	s := settings.Defaults()
	s.AllowCrossDeptTransfer = false
	called := false
	fake := fakeStore{
		transferFn: func(ctx context.Context, input store.TransferInput) (models.QueueEntry, error) {
			called = true
			return models.QueueEntry{}, nil
		},
	}
	handler := NewHandler(fake, settingsFn(s)).Routes()

	recorder := doJSON(t, handler, http.MethodPost, "/api/entries/"+testEntryID+"/actions/transfer", map[string]string{
		"to_department": "Pharmacy",
	})
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("status=%d, want 403", recorder.Code)
	}
	if called {
		t.Fatal("store must not be called when transfer is disabled")
	}
}

func TestFlowTransferComplete(t *testing.T) {
	fake := fakeStore{
		flowTransferFn: func(ctx context.Context, input store.FlowTransferInput) (models.QueueEntry, error) {
			return models.QueueEntry{}, store.ErrFlowComplete
		},
	}
	handler := NewHandler(fake, nil).Routes()

	recorder := doJSON(t, handler, http.MethodPost, "/api/entries/"+testEntryID+"/actions/flow-transfer", map[string]string{
		"flow_id": testFlowID,
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", recorder.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["result"] != "flow_complete" {
		t.Fatalf("resp=%v, want flow_complete", resp)
	}
}

func TestListEntriesAppliesAccessFilter(t *testing.T) {
	s := settings.Defaults()
	s.StaffAccessOwnDepartment = true
	fake := fakeStore{
		listFn: func(ctx context.Context, filter store.ListFilter) ([]models.QueueEntry, error) {
			return []models.QueueEntry{
				{ID: "1", Department: "Lab", Status: models.StatusWaiting},
				{ID: "2", Department: "Pharmacy", Status: models.StatusWaiting},
			}, nil
		},
	}
	handler := NewHandler(fake, settingsFn(s)).Routes()

	req := httptest.NewRequest(http.MethodGet, "/api/entries", nil)
	profile := models.Profile{UserID: "u1", Role: models.RoleStaff, Department: "Lab"}
	req = req.WithContext(context.WithValue(req.Context(), authContextKey{}, profile))
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("status=%d", recorder.Code)
	}
	var entries []models.QueueEntry
	if err := json.Unmarshal(recorder.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 1 || entries[0].Department != "Lab" {
		t.Fatalf("entries=%v, want Lab only", entries)
	}
}

func TestDisplayProjection(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	calledAt := now.Add(10 * time.Minute)
	fake := fakeStore{
		listFn: func(ctx context.Context, filter store.ListFilter) ([]models.QueueEntry, error) {
			return []models.QueueEntry{
				{ID: "1", Token: "LAB-001", Department: "Lab", Status: models.StatusCalled, CalledAt: &calledAt, CreatedAt: now},
				{ID: "2", Token: "LAB-002", Department: "Lab", Status: models.StatusWaiting, Priority: models.PriorityNormal, CreatedAt: now.Add(time.Minute)},
				{ID: "3", Token: "LAB-003", Department: "Lab", Status: models.StatusWaiting, Priority: models.PriorityEmergency, CreatedAt: now.Add(2 * time.Minute)},
			}, nil
		},
	}
	handler := NewHandler(fake, nil).Routes()

	req := httptest.NewRequest(http.MethodGet, "/api/display?department=Lab&next=2", nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status=%d", recorder.Code)
	}

	var resp struct {
		CurrentlyServing *models.QueueEntry  `json:"currently_serving"`
		NextWaiting      []models.QueueEntry `json:"next_waiting"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.CurrentlyServing == nil || resp.CurrentlyServing.Token != "LAB-001" {
		t.Fatalf("currently_serving=%v", resp.CurrentlyServing)
	}
	if len(resp.NextWaiting) != 2 || resp.NextWaiting[0].Token != "LAB-003" {
		t.Fatalf("next_waiting=%v, want emergency first", resp.NextWaiting)
	}
}

func TestAuthMiddleware(t *testing.T) {
	fake := fakeStore{
		sessionFn: func(ctx context.Context, sessionID string) (store.Session, error) {
			if sessionID != "good" {
				return store.Session{}, store.ErrSessionNotFound
			}
			return store.Session{SessionID: sessionID, UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)}, nil
		},
		profileFn: func(ctx context.Context, userID string) (models.Profile, error) {
			return models.Profile{UserID: userID, Role: models.RoleStaff, Department: "Lab"}, nil
		},
	}
	handler := AuthMiddleware(fake, NewHandler(fake, nil).Routes())

	req := httptest.NewRequest(http.MethodGet, "/api/entries", nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("no session: status=%d, want 401", recorder.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/entries", nil)
	req.Header.Set("Authorization", "Bearer bad")
	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("bad session: status=%d, want 401", recorder.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/entries", nil)
	req.Header.Set("Authorization", "Bearer good")
	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Fatalf("good session: status=%d, want 200", recorder.Code)
	}

	// Kiosk create stays public.
	recorder = doJSON(t, handler, http.MethodPost, "/api/entries", map[string]string{
		"full_name":  "Jane Roe",
		"department": "Lab",
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("kiosk create: status=%d, want 200", recorder.Code)
	}
}
