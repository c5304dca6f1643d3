package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/go-chi/chi/v5"

	"github.com/pratik-mahalle/ec2inventory/internal/api/middleware"
	"github.com/pratik-mahalle/ec2inventory/internal/domain/inventory"
	"github.com/pratik-mahalle/ec2inventory/internal/domain/syncstate"
	"github.com/pratik-mahalle/ec2inventory/internal/ec2sync"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/errors"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/logger"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/validator"
	"github.com/pratik-mahalle/ec2inventory/internal/providers"
	"github.com/pratik-mahalle/ec2inventory/internal/repository/postgres"
	"github.com/pratik-mahalle/ec2inventory/internal/services"
	"github.com/pratik-mahalle/ec2inventory/internal/testutil"
)

const testAccount = "111122223333"

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code string `json:"code"`
	} `json:"error"`
}

func serve(t *testing.T, h http.HandlerFunc, method, target string, userID int64, body interface{}, params map[string]string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	ctx := req.Context()
	if userID != 0 {
		ctx = context.WithValue(ctx, middleware.UserIDKey, userID)
	}
	if len(params) > 0 {
		rctx := chi.NewRouteContext()
		for k, v := range params {
			rctx.URLParams.Add(k, v)
		}
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	}
	rr := httptest.NewRecorder()
	h(rr, req.WithContext(ctx))

	var env envelope
	if err := json.NewDecoder(rr.Body).Decode(&env); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return rr, env
}

type handlerFixture struct {
	cloud     *testutil.FakeCloud
	sync      *stubSync
	account   *AccountHandler
	inventory *InventoryHandler
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	db := testutil.NewTestDB(t)
	t.Cleanup(func() { testutil.CleanupDB(db) })

	log := logger.Nop()
	cloud := testutil.NewFakeCloud()
	retry := providers.RetryPolicy{MaxTries: 1}
	accounts := postgres.NewAccountRepository(db, testutil.NewTestBox())
	repo := postgres.NewInventoryRepository(db)

	testutil.SeedAccount(t, db, 1, testAccount, "AKIAOWNER000000001")
	testutil.SeedRegion(t, db, "us-east-1", "us-east-1a")

	ctx := context.Background()
	if _, err := repo.UpsertAMI(ctx, &inventory.AMI{ID: "ami-web", AccountID: testAccount, Region: "us-east-1", Name: "web"}); err != nil {
		t.Fatalf("UpsertAMI() error = %v", err)
	}
	if _, err := repo.UpsertSecurityGroup(ctx, &inventory.SecurityGroup{ID: "sg-web", Name: "web", AccountID: testAccount, Region: "us-east-1"}); err != nil {
		t.Fatalf("UpsertSecurityGroup() error = %v", err)
	}
	if _, err := repo.UpsertInstance(ctx, &inventory.Instance{
		ID: "i-web", AccountID: testAccount, AvailabilityZone: "us-east-1a", InstanceType: "t3.small",
		EC2Platform: "linux", State: inventory.StateRunning, ImageID: aws.String("ami-web"),
	}); err != nil {
		t.Fatalf("UpsertInstance() error = %v", err)
	}
	if err := repo.AddInstanceSecurityGroups(ctx, "i-web", []string{"sg-web"}); err != nil {
		t.Fatalf("AddInstanceSecurityGroups() error = %v", err)
	}

	accountSvc := services.NewAccountService(accounts, postgres.NewSyncStateRepository(db), cloud.Factory(), retry, "us-east-1", log)
	inventorySvc := services.NewInventoryService(repo, accounts, postgres.NewRegionRepository(db),
		postgres.NewPriceRepository(db), cloud.Factory(), retry, log)

	sync := &stubSync{}
	return &handlerFixture{
		cloud:     cloud,
		sync:      sync,
		account:   NewAccountHandler(accountSvc, log, validator.New()),
		inventory: NewInventoryHandler(inventorySvc, sync, log),
	}
}

func TestAccountHandler_Add(t *testing.T) {
	tests := []struct {
		name       string
		body       interface{}
		userID     int64
		wantStatus int
		wantCode   string
	}{
		{
			name:       "valid key pair",
			body:       map[string]string{"name": "prod", "access_key_id": "AKIAEXAMPLE0000001", "secret_access_key": "wJalrXUtnFEMI/K7MDENG/bPxRfiCYEXAMPLEKEY"},
			userID:     2,
			wantStatus: http.StatusCreated,
		},
		{
			name:       "malformed access key",
			body:       map[string]string{"name": "prod", "access_key_id": "not-a-key", "secret_access_key": "wJalrXUtnFEMI/K7MDENG/bPxRfiCYEXAMPLEKEY"},
			userID:     2,
			wantStatus: http.StatusBadRequest,
			wantCode:   errors.ErrCodeValidation,
		},
		{
			name:       "missing fields",
			body:       map[string]string{"name": "prod"},
			userID:     2,
			wantStatus: http.StatusBadRequest,
			wantCode:   errors.ErrCodeValidation,
		},
		{
			name:       "unauthenticated",
			body:       map[string]string{},
			wantStatus: http.StatusUnauthorized,
			wantCode:   errors.ErrCodeUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newHandlerFixture(t)
			rr, env := serve(t, f.account.Add, http.MethodPost, "/api/v1/accounts", tt.userID, tt.body, nil)

			if rr.Code != tt.wantStatus {
				t.Fatalf("handler returned wrong status code: got %v want %v", rr.Code, tt.wantStatus)
			}
			if tt.wantCode != "" && env.Error.Code != tt.wantCode {
				t.Errorf("error code = %s, want %s", env.Error.Code, tt.wantCode)
			}
			if rr.Code != http.StatusCreated {
				return
			}

			var got struct {
				AccessKeyID string `json:"access_key_id"`
				Secret      string `json:"secret_access_key"`
			}
			if err := json.Unmarshal(env.Data, &got); err != nil {
				t.Fatalf("failed to decode account: %v", err)
			}
			if got.AccessKeyID != "**************0001" {
				t.Errorf("access_key_id = %q, want masked", got.AccessKeyID)
			}
			if got.Secret != "" {
				t.Error("response leaked the secret key")
			}
		})
	}
}

func TestAccountHandler_Remove(t *testing.T) {
	f := newHandlerFixture(t)

	rr, _ := serve(t, f.account.Remove, http.MethodDelete, "/api/v1/accounts/"+testAccount, 1, nil, map[string]string{"id": testAccount})
	if rr.Code != http.StatusOK {
		t.Fatalf("Remove status = %v, want 200", rr.Code)
	}
	rr, env := serve(t, f.account.Remove, http.MethodDelete, "/api/v1/accounts/"+testAccount, 1, nil, map[string]string{"id": testAccount})
	if rr.Code != http.StatusNotFound || env.Error.Code != errors.ErrCodeNotFound {
		t.Errorf("second Remove = %v %s, want 404", rr.Code, env.Error.Code)
	}
}

func TestInventoryHandler_Instances(t *testing.T) {
	f := newHandlerFixture(t)

	tests := []struct {
		name      string
		userID    int64
		query     string
		wantCount int
	}{
		{name: "own instances", userID: 1, wantCount: 1},
		{name: "filtered by state", userID: 1, query: "?state=stopped", wantCount: 0},
		{name: "other user", userID: 2, wantCount: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr, env := serve(t, f.inventory.Instances, http.MethodGet, "/api/v1/instances"+tt.query, tt.userID, nil, nil)
			if rr.Code != http.StatusOK {
				t.Fatalf("handler returned wrong status code: got %v want 200", rr.Code)
			}

			var page struct {
				Data []struct {
					ID    string                     `json:"id"`
					Links map[string]json.RawMessage `json:"links"`
				} `json:"data"`
				TotalItems int64 `json:"total_items"`
			}
			if err := json.Unmarshal(env.Data, &page); err != nil {
				t.Fatalf("failed to decode page: %v", err)
			}
			if len(page.Data) != tt.wantCount || page.TotalItems != int64(tt.wantCount) {
				t.Fatalf("got %d rows (total %d), want %d", len(page.Data), page.TotalItems, tt.wantCount)
			}
			if tt.wantCount == 0 {
				return
			}

			links := page.Data[0].Links
			if string(links["image"]) != `{"kind":"single","target":"ami","value":"ami-web"}` {
				t.Errorf("image link = %s", links["image"])
			}
			if string(links["security_groups"]) != `{"kind":"collection","target":"security_group","values":["sg-web"]}` {
				t.Errorf("security_groups link = %s", links["security_groups"])
			}
			if _, ok := links["key_pair"]; ok {
				t.Error("unset key pair rendered as a link")
			}
		})
	}
}

func TestInventoryHandler_ListingEnsuresFreshness(t *testing.T) {
	tests := []struct {
		name       string
		run        *ec2sync.Run
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "stale data starts a run", run: &ec2sync.Run{ID: "run-1", UserID: 1, Scope: ec2sync.ScopeResources}, wantStatus: http.StatusOK},
		{name: "fresh data", wantStatus: http.StatusOK},
		{name: "no account", err: errors.NoAccount(), wantStatus: http.StatusConflict, wantCode: errors.ErrCodeNoAccount},
		{name: "sync failure still lists", err: errors.UpstreamTransient("ec2:DescribeRegions", context.DeadlineExceeded), wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newHandlerFixture(t)
			f.sync.run, f.sync.err = tt.run, tt.err

			rr, env := serve(t, f.inventory.Instances, http.MethodGet, "/api/v1/instances", 1, nil, nil)
			if rr.Code != tt.wantStatus {
				t.Fatalf("handler returned wrong status code: got %v want %v", rr.Code, tt.wantStatus)
			}
			if len(f.sync.ensured) != 1 || f.sync.ensured[0] != 1 {
				t.Errorf("EnsureFresh calls = %v, want one for user 1", f.sync.ensured)
			}
			if tt.wantCode != "" {
				if env.Error.Code != tt.wantCode {
					t.Errorf("error code = %q, want %q", env.Error.Code, tt.wantCode)
				}
				return
			}

			var page struct {
				Data []json.RawMessage `json:"data"`
			}
			if err := json.Unmarshal(env.Data, &page); err != nil {
				t.Fatalf("failed to decode page: %v", err)
			}
			if len(page.Data) != 1 {
				t.Errorf("got %d rows, want the stored instance", len(page.Data))
			}
		})
	}
}

func TestInventoryHandler_Actions(t *testing.T) {
	tests := []struct {
		name       string
		handler    func(*InventoryHandler) http.HandlerFunc
		id         string
		wantStatus int
	}{
		{name: "stop", handler: func(h *InventoryHandler) http.HandlerFunc { return h.StopInstance }, id: "i-web", wantStatus: http.StatusOK},
		{name: "stop unknown", handler: func(h *InventoryHandler) http.HandlerFunc { return h.StopInstance }, id: "i-ghost", wantStatus: http.StatusNotFound},
		{name: "terminate", handler: func(h *InventoryHandler) http.HandlerFunc { return h.TerminateInstance }, id: "i-web", wantStatus: http.StatusOK},
		{name: "detach unknown", handler: func(h *InventoryHandler) http.HandlerFunc { return h.DetachVolume }, id: "vol-ghost", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newHandlerFixture(t)
			rr, _ := serve(t, tt.handler(f.inventory), http.MethodPost, "/api/v1/x/"+tt.id, 1, nil, map[string]string{"id": tt.id})
			if rr.Code != tt.wantStatus {
				t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, tt.wantStatus)
			}
		})
	}
}

type stubSync struct {
	run      *ec2sync.Run
	err      error
	interval time.Duration
	ensured  []int64
}

func (s *stubSync) EnsureFresh(ctx context.Context, userID int64) (*ec2sync.Run, error) {
	s.ensured = append(s.ensured, userID)
	return s.run, s.err
}

func (s *stubSync) RefreshResources(ctx context.Context, userID int64) (*ec2sync.Run, error) {
	return s.run, s.err
}

func (s *stubSync) RefreshPrices(ctx context.Context, userID int64) (*ec2sync.Run, error) {
	return s.run, s.err
}

func (s *stubSync) Status(ctx context.Context, userID int64) (*ec2sync.Status, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &ec2sync.Status{State: syncstate.New(userID), ResourcesDue: true, PricesDue: true}, nil
}

func (s *stubSync) SetResourcesInterval(ctx context.Context, userID int64, interval time.Duration) error {
	s.interval = interval
	return s.err
}

func TestSyncHandler_Ensure(t *testing.T) {
	tests := []struct {
		name        string
		sync        *stubSync
		wantStatus  int
		wantStarted bool
		wantCode    string
	}{
		{name: "nothing due", sync: &stubSync{}, wantStatus: http.StatusOK},
		{name: "no account", sync: &stubSync{err: errors.NoAccount()}, wantStatus: http.StatusConflict, wantCode: errors.ErrCodeNoAccount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewSyncHandler(tt.sync, logger.Nop(), validator.New())
			rr, env := serve(t, h.Ensure, http.MethodPost, "/api/v1/sync/ensure", 1, nil, nil)

			if rr.Code != tt.wantStatus {
				t.Fatalf("handler returned wrong status code: got %v want %v", rr.Code, tt.wantStatus)
			}
			if tt.wantCode != "" {
				if env.Error.Code != tt.wantCode {
					t.Errorf("error code = %s, want %s", env.Error.Code, tt.wantCode)
				}
				return
			}
			var resp struct {
				Started bool `json:"started"`
			}
			if err := json.Unmarshal(env.Data, &resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Started != tt.wantStarted {
				t.Errorf("started = %v, want %v", resp.Started, tt.wantStarted)
			}
		})
	}
}

func TestSyncHandler_Status(t *testing.T) {
	h := NewSyncHandler(&stubSync{}, logger.Nop(), validator.New())
	rr, env := serve(t, h.Status, http.MethodGet, "/api/v1/sync/status", 1, nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("handler returned wrong status code: got %v want 200", rr.Code)
	}

	var status struct {
		ResourcesDue      bool `json:"resources_due"`
		ResourcesInterval int  `json:"resources_interval_seconds"`
	}
	if err := json.Unmarshal(env.Data, &status); err != nil {
		t.Fatalf("failed to decode status: %v", err)
	}
	if !status.ResourcesDue || status.ResourcesInterval != 3600 {
		t.Errorf("status = %+v, want due with a 3600s interval", status)
	}
}

func TestSyncHandler_SetInterval(t *testing.T) {
	tests := []struct {
		name       string
		body       interface{}
		wantStatus int
		want       time.Duration
	}{
		{name: "two hours", body: map[string]int{"minutes": 120}, wantStatus: http.StatusOK, want: 2 * time.Hour},
		{name: "zero", body: map[string]int{"minutes": 0}, wantStatus: http.StatusBadRequest},
		{name: "more than a week", body: map[string]int{"minutes": 20000}, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &stubSync{}
			h := NewSyncHandler(s, logger.Nop(), validator.New())
			rr, _ := serve(t, h.SetInterval, http.MethodPut, "/api/v1/sync/interval", 1, tt.body, nil)
			if rr.Code != tt.wantStatus {
				t.Fatalf("handler returned wrong status code: got %v want %v", rr.Code, tt.wantStatus)
			}
			if s.interval != tt.want {
				t.Errorf("interval = %v, want %v", s.interval, tt.want)
			}
		})
	}
}
