// Package queryagent runs natural-language questions against the hosted
// Weaviate query agent. Retrieval, ranking and answer synthesis all happen
// remotely; this package only builds the run request over an open cluster
// connection and decodes the optional-field Response.
package queryagent
