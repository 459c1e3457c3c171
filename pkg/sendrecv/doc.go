// See sendrecv.go for the marker-discovery and fallback algorithm, and
// transport.go for the two Transport implementations: SSHTransport (real
// ssh pipeline) and LocalTransport (Test=true requests, which simulate a
// remote host as a subdirectory of the configured test-remote root).
package sendrecv
