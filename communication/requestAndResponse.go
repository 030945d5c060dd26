package communication

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// DecodeRequest parses one request line (without its delimiter).
func DecodeRequest(line string) (Request, error) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return Request{}, malformed("empty message")
	}

	keyword, rest, _ := strings.Cut(line, fieldSeparator)
	req := Request{Operation: Operation(keyword)}
	fields := strings.Fields(rest)

	switch req.Operation {
	case Join:
		if len(fields) != 2 {
			return Request{}, malformed("%s expects an address and a file list, got %d fields", Join, len(fields))
		}
		addr, err := ParsePeerAddress(fields[0])
		if err != nil {
			return Request{}, err
		}
		files, err := DecodeFileList(fields[1])
		if err != nil {
			return Request{}, err
		}
		req.Address, req.Files = addr, files

	case Search, Update:
		if len(fields) != 1 {
			return Request{}, malformed("%s expects address%sfilename, got %d fields", req.Operation, listSeparator, len(fields))
		}
		hostPort, name, ok := strings.Cut(fields[0], listSeparator)
		if !ok {
			return Request{}, malformed("%s is missing the filename", req.Operation)
		}
		addr, err := ParsePeerAddress(hostPort)
		if err != nil {
			return Request{}, err
		}
		if err := ValidateFileName(name); err != nil {
			return Request{}, err
		}
		req.Address, req.FileName = addr, name

	case List:
		if len(fields) != 0 {
			return Request{}, malformed("%s takes no arguments", List)
		}

	case Download:
		if len(fields) != 1 {
			return Request{}, malformed("%s expects one filename, got %d fields", Download, len(fields))
		}
		if err := ValidateFileName(fields[0]); err != nil {
			return Request{}, err
		}
		req.FileName = fields[0]

	default:
		return Request{}, malformed("unrecognized operation %q", keyword)
	}

	return req, nil
}

// Encode renders r as a request line without the trailing newline.
func (r Request) Encode() string {
	switch r.Operation {
	case Join:
		return strings.Join([]string{string(Join), r.Address.String(), EncodeFileList(r.Files)}, fieldSeparator)
	case Search, Update:
		return string(r.Operation) + fieldSeparator + r.Address.String() + listSeparator + r.FileName
	case Download:
		return string(Download) + fieldSeparator + r.FileName
	default:
		return string(r.Operation)
	}
}

// ReadLine reads up to and excluding the next '\n' (a trailing '\r' is
// dropped too). A final line terminated by EOF instead of a newline is
// returned as is; the following call then reports io.EOF. Lines longer than
// limit bytes yield ErrLineTooLong.
func ReadLine(r *bufio.Reader, limit int) (string, error) {
	var line []byte
	for {
		chunk, err := r.ReadSlice('\n')
		line = append(line, chunk...)
		if len(strings.TrimRight(string(line), "\r\n")) > limit {
			return "", ErrLineTooLong
		}

		switch {
		case err == nil:
			return strings.TrimRight(string(line), "\r\n"), nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF) && len(line) > 0:
			return strings.TrimRight(string(line), "\r\n"), nil
		default:
			return "", err
		}
	}
}

// WriteLine writes s followed by a newline.
func WriteLine(w io.Writer, s string) error {
	_, err := io.WriteString(w, s+"\n")
	return err
}

// EncodeError renders err as an ERROR reply line.
func EncodeError(err error) string {
	text := strings.Join(strings.Fields(err.Error()), fieldSeparator)
	return ErrorToken + fieldSeparator + text
}

// DecodeReply returns a *RemoteError if line is an ERROR reply, nil otherwise.
func DecodeReply(line string) error {
	if line == ErrorToken {
		return &RemoteError{}
	}
	if text, ok := strings.CutPrefix(line, ErrorToken+fieldSeparator); ok {
		return &RemoteError{Text: text}
	}
	return nil
}

// EncodeSize renders the header that precedes DOWNLOAD bytes.
func EncodeSize(n int64) string {
	return SizeToken + fieldSeparator + strconv.FormatInt(n, 10)
}

// DecodeSize parses a DOWNLOAD reply header. An ERROR reply is returned as a
// *RemoteError.
func DecodeSize(line string) (int64, error) {
	if err := DecodeReply(line); err != nil {
		return 0, err
	}

	n, ok := strings.CutPrefix(line, SizeToken+fieldSeparator)
	if !ok {
		return 0, malformed("expected %s header, got %q", SizeToken, line)
	}
	size, err := strconv.ParseInt(n, 10, 64)
	if err != nil || size < 0 {
		return 0, malformed("bad size %q", n)
	}
	return size, nil
}

// ExpectToken checks a single-token reply such as JOIN_OK.
func ExpectToken(line, token string) error {
	if err := DecodeReply(line); err != nil {
		return err
	}
	if line != token {
		return fmt.Errorf("%w: expected %s, got %q", ErrMalformedMessage, token, line)
	}
	return nil
}
