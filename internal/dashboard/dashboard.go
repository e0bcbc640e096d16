// Package dashboard wires the session, sync, triage, analytics and legal
// components into the engine a presentation layer drives.
package dashboard

import (
	"context"
	"time"

	"github.com/apex/log"
	"github.com/golang/geo/s2"
	geojson "github.com/paulmach/go.geojson"

	"openvote/dashboard/internal/analytics"
	"openvote/dashboard/internal/apperr"
	"openvote/dashboard/internal/config"
	"openvote/dashboard/internal/legal"
	"openvote/dashboard/internal/metrics"
	"openvote/dashboard/internal/rbac"
	"openvote/dashboard/internal/remote"
	"openvote/dashboard/internal/report"
	"openvote/dashboard/internal/session"
	"openvote/dashboard/internal/syncer"
	"openvote/dashboard/internal/triage"
)

// Backend is every remote call the dashboard makes. *remote.Client
// implements it.
type Backend interface {
	session.Authenticator
	syncer.Fetcher
	triage.Updater
	legal.Qualifier
	Register(ctx context.Context, username, password string) error
	GenerateToken(ctx context.Context, role, regionID string) (remote.ActivationToken, error)
	ListUsers(ctx context.Context) ([]remote.User, error)
	UpdateUser(ctx context.Context, userID, role, regionID string) error
	DeleteUser(ctx context.Context, userID string) error
}

var _ Backend = (*remote.Client)(nil)

type Deps struct {
	Backend Backend
	Storage session.Storage
	Metrics *metrics.Set
	// Layer styles the map markers, report.DefaultLayerConfig when nil.
	Layer *report.LayerConfig
	Now   func() time.Time
}

type Dashboard struct {
	backend   Backend
	sessions  *session.Manager
	store     *report.Store
	scheduler *syncer.Scheduler
	triage    *triage.Machine
	legal     *legal.Adapter
	layer     report.LayerConfig
	loc       *time.Location
	now       func() time.Time
}

func New(cfg config.Config, deps Deps) *Dashboard {
	d := &Dashboard{
		backend: deps.Backend,
		store:   report.NewStore(),
		layer:   report.DefaultLayerConfig(),
		loc:     cfg.Location(),
		now:     deps.Now,
	}
	if deps.Layer != nil {
		d.layer = *deps.Layer
	}
	if d.now == nil {
		d.now = time.Now
	}
	storage := deps.Storage
	if storage == nil {
		storage = session.NewMemoryStorage()
	}

	d.sessions = session.NewManager(storage, deps.Backend)
	d.scheduler = syncer.New(deps.Backend, d.store, syncer.Options{
		Interval:       cfg.SyncInterval,
		Unit:           cfg.SyncUnit,
		OnUnauthorized: d.forceLogout,
		Metrics:        deps.Metrics,
	})
	d.triage = triage.New(d.store, deps.Backend, d.scheduler, deps.Metrics)
	d.legal = legal.NewAdapter(deps.Backend, deps.Metrics)
	d.sessions.OnLogout(d.clear)
	return d
}

// Token is the bearer credential for the remote client.
func (d *Dashboard) Token() string {
	return d.sessions.Token()
}

// Open restores a stored session and starts syncing. Without one it returns
// ErrNoSession and the caller shows the login view.
func (d *Dashboard) Open(ctx context.Context) (session.Session, error) {
	sess, ok := d.sessions.Restore(ctx)
	if !ok {
		return session.Session{}, apperr.New(apperr.ErrNoSession, "NO_SESSION", "sign in to continue")
	}
	d.start(ctx)
	return sess, nil
}

// Login authenticates and starts syncing.
func (d *Dashboard) Login(ctx context.Context, username, password string) (session.Session, error) {
	sess, err := d.sessions.Login(ctx, username, password)
	if err != nil {
		return session.Session{}, err
	}
	d.start(ctx)
	return sess, nil
}

// Logout stops syncing and drops the credential and every piece of
// in-memory state.
func (d *Dashboard) Logout(ctx context.Context) {
	d.scheduler.Stop()
	d.sessions.Logout(ctx)
}

// Close leaves the dashboard: the timer stops and late responses are
// dropped, but the stored credential stays for the next Open.
func (d *Dashboard) Close() {
	d.scheduler.Stop()
	d.legal.Close()
}

func (d *Dashboard) Session(ctx context.Context) (session.Session, bool) {
	return d.sessions.Current(ctx)
}

// Can answers UI gating for the current role. Without a session nothing is
// allowed.
func (d *Dashboard) Can(ctx context.Context, action rbac.Action) bool {
	sess, ok := d.sessions.Current(ctx)
	return ok && rbac.Can(sess.Role, action)
}

func (d *Dashboard) start(ctx context.Context) {
	d.scheduler.Start(ctx)
}

// forceLogout runs when the backend refuses the credential. It may be called
// from the scheduler goroutine, so it cancels the timer without waiting.
func (d *Dashboard) forceLogout() {
	log.Info("dashboard: credential refused, returning to login")
	d.scheduler.Cancel()
	d.sessions.Logout(context.Background())
}

// clear runs after every logout, including one detected on expiry. The
// scheduler is cancelled first so a late fetch cannot refill the store.
func (d *Dashboard) clear() {
	d.scheduler.Cancel()
	d.store.Clear()
	d.legal.Close()
}

// check forces a logout when err says the credential is no longer accepted.
func (d *Dashboard) check(err error) error {
	if apperr.IsAuthorizationExpired(err) {
		d.forceLogout()
	}
	return err
}

func (d *Dashboard) require(ctx context.Context, action rbac.Action) (session.Session, error) {
	sess, ok := d.sessions.Current(ctx)
	if !ok {
		return session.Session{}, apperr.New(apperr.ErrNoSession, "NO_SESSION", "sign in to continue")
	}
	if !rbac.Can(sess.Role, action) {
		return session.Session{}, apperr.Permission(string(sess.Role), string(action))
	}
	return sess, nil
}

// Reports is the current snapshot. The status filter is applied by the
// server, so this is already filtered.
func (d *Dashboard) Reports() []report.Report {
	return d.store.Snapshot()
}

func (d *Dashboard) Search(query string) []report.Report {
	return d.store.Search(query)
}

// Filter narrows an already fetched snapshot locally without a round trip.
func (d *Dashboard) Filter(status report.Status) []report.Report {
	return d.store.Filter(status)
}

// SetFilter changes the server-side status filter and refetches.
func (d *Dashboard) SetFilter(ctx context.Context, status report.Status) error {
	if status != report.StatusAny && !status.Valid() {
		return apperr.Validation("INVALID_STATUS", "unknown status filter")
	}
	if _, err := d.require(ctx, rbac.ActionViewReports); err != nil {
		return err
	}
	return d.scheduler.SetFilter(ctx, status)
}

func (d *Dashboard) ActiveFilter() report.Status {
	return d.scheduler.Filter()
}

// Refresh fetches now and restarts the countdown.
func (d *Dashboard) Refresh(ctx context.Context) error {
	if _, err := d.require(ctx, rbac.ActionViewReports); err != nil {
		return err
	}
	return d.scheduler.Refresh(ctx)
}

func (d *Dashboard) Countdown() int {
	return d.scheduler.Countdown()
}

// Layer is the marker layer for the current snapshot.
func (d *Dashboard) Layer() *geojson.FeatureCollection {
	return report.FeatureCollection(d.store.Snapshot(), d.layer)
}

func (d *Dashboard) Bounds() s2.Rect {
	return report.Bounds(d.store.Snapshot())
}

// Viewport returns the located reports inside rect.
func (d *Dashboard) Viewport(rect s2.Rect) []report.Report {
	return d.store.Within(rect)
}

// Triage asks to move a report to status as the current user.
func (d *Dashboard) Triage(ctx context.Context, reportID string, status report.Status) error {
	sess, ok := d.sessions.Current(ctx)
	if !ok {
		return apperr.New(apperr.ErrNoSession, "NO_SESSION", "sign in to continue")
	}
	return d.check(d.triage.RequestTransition(ctx, reportID, status, sess.Role))
}

func (d *Dashboard) Stats(ctx context.Context) (analytics.View, error) {
	if _, err := d.require(ctx, rbac.ActionViewAnalytics); err != nil {
		return analytics.View{}, err
	}
	return analytics.Compute(d.store.Snapshot(), d.now(), d.loc), nil
}

// FocusView is where the map should fly when a report is selected.
type FocusView struct {
	Report report.Report
	Center report.Location
	Zoom   int
}

// Focus selects a report for the detail and legal panels and positions the
// map on it. A report without a position leaves the map at its default view.
func (d *Dashboard) Focus(reportID string) (FocusView, error) {
	r, ok := d.store.Get(reportID)
	if !ok {
		return FocusView{}, apperr.Validation("UNKNOWN_REPORT", "this report is no longer listed")
	}
	d.legal.Select(reportID)
	if !r.HasLocation {
		return FocusView{Report: r, Center: report.DefaultCenter, Zoom: report.DefaultZoom}, nil
	}
	return FocusView{Report: r, Center: r.Location, Zoom: report.FocusZoom}, nil
}

func (d *Dashboard) SelectReport(reportID string) {
	d.legal.Select(reportID)
}

func (d *Dashboard) CloseLegalPanel() {
	d.legal.Close()
}

// Qualify runs legal qualification for a report. Pair the result with
// QualificationNotice to tell "no match" apart from a failure.
func (d *Dashboard) Qualify(ctx context.Context, reportID string) (legal.Result, error) {
	if _, err := d.require(ctx, rbac.ActionQualifyReport); err != nil {
		return legal.Result{}, err
	}
	res, err := d.legal.Qualify(ctx, reportID)
	return res, d.check(err)
}

// LegalMatches is the result on display for the selected report.
func (d *Dashboard) LegalMatches() (legal.Result, bool) {
	return d.legal.Current()
}
