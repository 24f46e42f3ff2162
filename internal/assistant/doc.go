// Package assistant answers one question end to end.
//
// Ask resolves credentials, applies the validation gate, opens a cluster
// connection, runs the query agent and renders the response. The connection
// is closed on every path once opened. Failures are one of three types:
//
//   - *ConfigError: credentials missing or unreadable; no network call made
//   - *ConnectError: the cluster could not be reached or rejected the key
//   - *DispatchError: the query agent run failed
//
// UserMessage turns any of them into the text shown to the user.
package assistant
