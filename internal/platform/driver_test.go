package platform

import "testing"

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		expectErr bool
	}{
		{name: "ios", input: "ios"},
		{name: "case and spaces", input: "  IOS "},
		{name: "empty selects default", input: ""},
		{name: "cisco alias", input: "cisco"},
		{name: "unknown", input: "junos", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			driver, err := New(tt.input, Options{})
			if (err != nil) != tt.expectErr {
				t.Fatalf("New(%q) error = %v, expectErr %v", tt.input, err, tt.expectErr)
			}
			if err == nil && driver.Name() != DefaultPlatform {
				t.Errorf("New(%q).Name() = %q", tt.input, driver.Name())
			}
		})
	}
}

func TestNew_PassesRules(t *testing.T) {
	driver, err := New("ios", Options{ReservedVLANs: []int{99}, MaxNameLength: 3})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	vlans := driver.ParseVLANListing("99 HIDDEN active\n1002 fddi-default act/unsup\n30 USERS active\n")
	if len(vlans) != 1 || vlans[0].ID != "30" || vlans[0].Name != "USE" {
		t.Errorf("ParseVLANListing() = %v", vlans)
	}
}

func TestAvailable(t *testing.T) {
	for _, name := range Available() {
		if _, err := New(name, Options{}); err != nil {
			t.Errorf("New(%q) error = %v", name, err)
		}
	}
}
