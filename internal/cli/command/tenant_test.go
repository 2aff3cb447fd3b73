package command

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestTenantCurrent(t *testing.T) {
	h := newHarness(t)
	h.login("a@x.io")

	if out := h.mustRun("tenant", "current"); !strings.Contains(out, "Tenant ID: 7") {
		t.Errorf("output = %q", out)
	}

	var view tenantView
	if err := json.Unmarshal([]byte(h.mustRun("-o", "json", "tenant", "current")), &view); err != nil {
		t.Fatal(err)
	}
	if view.User != "a@x.io" || view.TenantID == nil || *view.TenantID != 7 {
		t.Errorf("view = %+v", view)
	}
}

func TestTenantCurrent_NotLoggedIn(t *testing.T) {
	h := newHarness(t)

	err := h.run("", "tenant", "current")
	if msg := exitMessage(t, err); !strings.Contains(msg, "Login with") {
		t.Errorf("message = %q", msg)
	}
}

func TestTenantSwitch_RequiresNewLogin(t *testing.T) {
	h := newHarness(t)
	h.login("a@x.io")

	out := h.mustRun("tenant", "switch", "9")
	if !strings.Contains(out, "Switched to tenant 9") || !strings.Contains(out, "--email a@x.io") {
		t.Errorf("output = %q", out)
	}

	st := h.status()
	if st.User != "a@x.io" {
		t.Errorf("User = %q, want a@x.io kept", st.User)
	}
	if st.HasCredential {
		t.Error("credential should be dropped after a tenant switch")
	}
	if st.TenantID == nil || *st.TenantID != 9 {
		t.Errorf("TenantID = %v, want 9", st.TenantID)
	}

	err := h.run("", "auth", "token")
	if msg := exitMessage(t, err); !strings.Contains(msg, "Login with") {
		t.Errorf("message = %q", msg)
	}
}

func TestTenantSwitch_NoUser(t *testing.T) {
	h := newHarness(t)

	err := h.run("", "tenant", "switch", "9")
	if msg := exitMessage(t, err); !strings.Contains(msg, "Login with") {
		t.Errorf("message = %q", msg)
	}
}

func TestTenantSwitch_BadArgument(t *testing.T) {
	h := newHarness(t)

	err := h.run("", "tenant", "switch", "abc")
	if msg := exitMessage(t, err); !strings.Contains(msg, "integer") {
		t.Errorf("message = %q", msg)
	}
}
