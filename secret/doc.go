// Package secret resolves credentials referenced from client configuration.
//
// A configured value is first expanded strictly against the environment and
// then scanned for references of the form
//
//	secretref:<provider>:<ref>
//
// e.g. "secretref:file:/run/secrets/api_key" or "secretref:env:API_KEY".
// Built-in providers are "env" and "file"; others can be added through a
// Registry. Providers never log resolved values.
package secret
