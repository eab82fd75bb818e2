// Package engine implements the TwinSync reconciliation workflow:
// Snapshot -> Plan -> Apply -> Status.
//
// A twin repository mirrors one device. Snapshot captures live system
// state into live/ through capability providers, Plan diffs desired
// state in state/ against live/ into a corrective action plan, Apply
// executes the persisted plan, and Status reports structural drift per
// fragment. Providers are registered at compile time and activated
// through plugin.yaml manifests discovered in the repository.
package engine
