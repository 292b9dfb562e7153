// Package ffmpeg builds and runs ffmpeg invocations for the supported
// transformation operations. Command construction is pure and fully
// deterministic from the job parameters; the client streams the progress
// feed emitted on stdout and supports termination of a running encode.
package ffmpeg
