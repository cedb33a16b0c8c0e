package server

// Wire protocol: every logical message travels as exactly one line of
// line-safe ciphertext. The decrypted text is classified as follows:
//
//	/command args     command, dispatched to the command processor
//	__FILE__:<name>[@user]   begin of a file transfer; data frames follow
//	<base64 chunk>    file content while a transfer is open
//	__END__           end of the open file transfer
//	anything else     chat text, fanned out to all active sessions
const (
	fileHeaderPrefix = "__FILE__:"
	fileEndMarker    = "__END__"

	// dataChunkSize is the number of raw bytes carried per data frame
	// before base64 encoding.
	dataChunkSize = 512

	// maxLineBytes bounds a single ciphertext line.
	maxLineBytes = 1024 * 1024
)

// parseFileHeader splits the payload of a __FILE__: header into filename and
// optional @target. The last '@' is the separator; filenames must not
// contain '@'.
func parseFileHeader(payload string) (name, target string) {
	for i := len(payload) - 1; i >= 0; i-- {
		if payload[i] == '@' {
			return payload[:i], payload[i+1:]
		}
	}
	return payload, ""
}
