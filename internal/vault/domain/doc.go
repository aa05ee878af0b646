// Package domain holds the vault entities and the rules that govern them:
// assets and their beneficiaries, death verification events with their
// multisig approvals, and the transfer records derived from a verified event.
// Constructors validate and normalize input; the quorum decision lives here as
// a pure function so it can be tested without storage.
package domain
