// Package weaviate opens authenticated sessions to a Weaviate Cloud cluster.
//
// # Overview
//
// A Client is a scoped acquisition: it is opened for a single interaction and
// released with Close on every exit path.
//
//	client, err := weaviate.Connect(ctx, creds)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
// # Authentication
//
// Every request carries:
//
//   - Authorization: Bearer <WEAVIATE_API_KEY>
//   - X-OpenAI-Api-Key: <OPENAI_API_KEY>
//
// The second header lets the cluster and the hosted query agent call the
// model provider on the caller's behalf.
//
// # Connect
//
// Connect refuses incomplete credentials, normalizes bare hostnames to https,
// then uses weaviate-go-client to probe /v1/.well-known/ready and read
// /v1/meta. WithTimeout bounds each of those two checks; requests sent later
// through Do only carry their own context. Failures are returned as *Error;
// an unauthorized key wraps ErrUnauthorized. There is no retry.
package weaviate
