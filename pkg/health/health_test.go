package health

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func fakeEnv(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func TestReport_AllHealthy(t *testing.T) {
	svc := NewService([]string{"DATABASE_URL"},
		NewChecker("postgresql_connection", func(context.Context) error { return nil }),
		NewChecker("firestore", func(context.Context) error { return nil }),
	)
	svc.lookup = fakeEnv(map[string]string{"DATABASE_URL": "postgres://x"})
	svc.RecordInit("firestore", nil)

	r := svc.Report(context.Background())

	if !r.OK() {
		t.Fatalf("expected healthy report, got %+v", r)
	}
	if r.EnvironmentVariables["DATABASE_URL"] != StatusPresent {
		t.Errorf("expected DATABASE_URL present, got %q", r.EnvironmentVariables["DATABASE_URL"])
	}
	if v, ok := r.InitializationErrors["firestore"]; !ok || v != nil {
		t.Errorf("expected null firestore init error, got %v (present=%v)", v, ok)
	}
}

func TestReport_MissingEnvIsUnhealthy(t *testing.T) {
	svc := NewService([]string{"KAFKA_API_KEY", "EMPTY"})
	svc.lookup = fakeEnv(map[string]string{"EMPTY": ""})

	r := svc.Report(context.Background())

	if r.OK() {
		t.Fatal("expected unhealthy report")
	}
	if r.EnvironmentVariables["KAFKA_API_KEY"] != StatusMissing || r.EnvironmentVariables["EMPTY"] != StatusMissing {
		t.Errorf("unexpected env statuses %+v", r.EnvironmentVariables)
	}
}

func TestReport_FailedDependency(t *testing.T) {
	initErr := errors.New("credentials missing")
	svc := NewService(nil,
		Failed("firestore", initErr),
		NewChecker("postgresql_connection", func(context.Context) error { return nil }),
	)
	svc.lookup = fakeEnv(nil)
	svc.RecordInit("firestore", initErr)

	r := svc.Report(context.Background())

	if r.OK() {
		t.Fatal("expected unhealthy report")
	}
	if !strings.HasPrefix(r.Dependencies["firestore"], StatusError) {
		t.Errorf("expected firestore error status, got %q", r.Dependencies["firestore"])
	}
	if r.Dependencies["postgresql_connection"] != StatusOK {
		t.Errorf("expected postgres ok, got %q", r.Dependencies["postgresql_connection"])
	}
	if got := r.InitializationErrors["firestore"]; got == nil || *got != "credentials missing" {
		t.Errorf("unexpected init error %v", got)
	}
}

func TestReport_AddChecker(t *testing.T) {
	svc := NewService(nil)
	svc.lookup = fakeEnv(nil)
	svc.AddChecker(NewChecker("event_bus", func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			return errors.New("expected a deadline")
		}
		return nil
	}))

	r := svc.Report(context.Background())
	if r.Dependencies["event_bus"] != StatusOK {
		t.Errorf("expected event_bus ok, got %q", r.Dependencies["event_bus"])
	}
}
