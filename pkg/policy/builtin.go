package policy

// Builtins returns the policies shipped with the engine. A repository
// policy with the same name replaces the built-in version.
func Builtins() []Policy {
	return []Policy{
		packageRemovalPolicy(),
		sshGuardPolicy(),
	}
}

// packageRemovalPolicy warns when a plan removes installed packages.
// Removals are usually intentional, so this stays at warning severity.
func packageRemovalPolicy() Policy {
	return Policy{
		Name:        "package-removal",
		Description: "Warns when a plan removes installed packages",
		Severity:    SeverityWarning,
		Enabled:     true,
		Builtin:     true,
		Rego: `package twinsync.policies.packages

import rego.v1

deny contains violation if {
	input.provider == "packages.debian"
	input.action.op == "remove"
	violation := {
		"message": sprintf("plan removes package %s", [input.action.name]),
		"severity": "warning",
	}
}`,
	}
}

// sshGuardPolicy refuses plans that would stop or disable the SSH
// service. Losing SSH on a headless device usually means a site visit.
func sshGuardPolicy() Policy {
	return Policy{
		Name:        "ssh-guard",
		Description: "Refuses plans that stop or disable the SSH service",
		Severity:    SeverityError,
		Enabled:     true,
		Builtin:     true,
		Rego: `package twinsync.policies.services

import rego.v1

guarded_units := {"ssh", "sshd", "ssh.service", "sshd.service"}

deny contains violation if {
	input.provider == "services.systemd"
	input.action.op in {"stop", "disable"}
	input.action.name in guarded_units
	violation := {
		"message": sprintf("plan would %s %s", [input.action.op, input.action.name]),
		"severity": "error",
	}
}`,
	}
}
