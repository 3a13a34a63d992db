package eventpipe

import "testing"

func TestParseLine(t *testing.T) {
	cases := []struct {
		line string
		want Command
	}{
		{"scan AB12CD34", Command{Op: OpScan, Arg: "AB12CD34"}},
		{"SCAN ab12cd34", Command{Op: OpScan, Arg: "ab12cd34"}},
		{"register", Command{Op: OpRegister}},
		{"connect", Command{Op: OpConnect}},
		{"connect /dev/ttyUSB1", Command{Op: OpConnect, Arg: "/dev/ttyUSB1"}},
		{"disconnect", Command{Op: OpDisconnect}},
		{"export /tmp/log.xlsx", Command{Op: OpExport, Arg: "/tmp/log.xlsx"}},
		{"backup /tmp/copy.db", Command{Op: OpBackup, Arg: "/tmp/copy.db"}},
		{"cleanup", Command{Op: OpCleanup, Days: 30}},
		{"cleanup 7", Command{Op: OpCleanup, Days: 7}},
		{"stats", Command{Op: OpStats}},
		{
			"adduser AB12CD34|Alice Smith|Engineering|Technician",
			Command{Op: OpAddUser, Person: PersonSpec{
				CardID: "AB12CD34", Name: "Alice Smith",
				Department: "Engineering", Position: "Technician",
			}},
		},
		{
			"adduser -|Bob Jones||",
			Command{Op: OpAddUser, Person: PersonSpec{Name: "Bob Jones"}},
		},
		{
			"edituser 3 EF56|Alice Smith|Operations|Lead",
			Command{Op: OpEditUser, ID: 3, Person: PersonSpec{
				CardID: "EF56", Name: "Alice Smith",
				Department: "Operations", Position: "Lead",
			}},
		},
		{"deluser 7", Command{Op: OpDelUser, ID: 7}},
		{"users", Command{Op: OpUsers}},
	}

	for _, c := range cases {
		got, err := ParseLine(c.line)
		if err != nil {
			t.Errorf("ParseLine(%q): %v", c.line, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseLine(%q) = %+v, want %+v", c.line, got, c.want)
		}
	}
}

func TestParseLineErrors(t *testing.T) {
	lines := []string{
		"scan", "export", "backup",
		"cleanup -1", "cleanup 0", "cleanup x",
		"adduser", "adduser AB12|||", // no name
		"edituser", "edituser x AB12|Alice||", "edituser 0 AB12|Alice||",
		"deluser", "deluser x",
		"frobnicate",
	}
	for _, line := range lines {
		if _, err := ParseLine(line); err == nil {
			t.Errorf("ParseLine(%q) = nil error, want failure", line)
		}
	}
}
