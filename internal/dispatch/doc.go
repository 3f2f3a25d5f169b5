// Package dispatch fans a query out to matched agents under per-request
// credentials. Every agent gets exactly one call and produces exactly one
// AgentResponse; failures (missing credentials, decryption, network,
// timeout) are isolated to their own slot and never abort sibling calls.
package dispatch
