// Package keys provisions SSH key pairs for service accounts.
//
// A Provisioner guarantees that an account's ~/.ssh/id_rsa key pair exists
// and returns the public half. The first call generates the pair by running
// ssh-keygen as the account; later calls read the existing public key
// without spawning anything.
//
// # Results
//
// Provision returns a Result tagged with one of three statuses:
//
//	Found          - the public key, trimmed of surrounding whitespace
//	NotProvisioned - the account doesn't exist on this host
//	Failed         - something is wrong; Err says what
//
// Result.Fact collapses NotProvisioned and Failed to an empty string, for
// callers that embed the key verbatim into rendered files.
//
// # Concurrency
//
// Calls for the same account are serialized inside the process, and across
// processes when a Locker is configured. A caller that waited on the lock
// sees the key written by the one before it and never generates a second
// pair. Existing key files are never overwritten.
//
// # Key Layout
//
//	<home>/.ssh/id_rsa      private key, never read
//	<home>/.ssh/id_rsa.pub  public key, the value returned
//
// The file names stay id_rsa whatever key type is configured.
package keys
