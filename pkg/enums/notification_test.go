package enums

import "testing"

func TestParseNotificationType(t *testing.T) {
	for _, valid := range []string{"property", "inquiry", "chat", "system"} {
		parsed, err := ParseNotificationType(valid)
		if err != nil {
			t.Fatalf("expected %q to parse: %v", valid, err)
		}
		if !parsed.IsValid() {
			t.Fatalf("parsed type %q should be valid", parsed)
		}
	}

	if _, err := ParseNotificationType("marketing"); err == nil {
		t.Fatal("expected unknown type to fail parsing")
	}
	if NotificationType("").IsValid() {
		t.Fatal("empty type must not be valid")
	}
}
