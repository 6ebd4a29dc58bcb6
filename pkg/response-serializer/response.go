package serializer

import (
	"bufio"
	"bytes"
	"io"
	"net/http"
	"strconv"
	"time"
)

const responseTimeHeaderName = "Swr-Response-Time"

type TimedResponse struct {
	Response *http.Response
	// The value of the clock at the time the response was received.
	// Needed for age calculation.
	ResponseTime time.Time
}

// BytesToStoredResponse parses bytes created by StoredResponseToBytes.
// The returned response is attached to req.
func BytesToStoredResponse(b []byte, req *http.Request) (TimedResponse, error) {
	sRes := TimedResponse{}
	res, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(b)), req)
	if err != nil {
		return sRes, err
	}
	sRes.Response = res
	resTimeInt, err := strconv.ParseInt(res.Header.Get(responseTimeHeaderName), 10, 64)
	if err != nil {
		return sRes, err
	}
	sRes.ResponseTime = time.Unix(0, resTimeInt)
	// delete extra headers
	sRes.Response.Header.Del(responseTimeHeaderName)
	return sRes, nil
}

// StoredResponseToBytes returns the HTTP/1.1 representation of the response.
// The body of the response is read, and set back so that it can be read again.
func StoredResponseToBytes(sRes TimedResponse) ([]byte, error) {
	res := sRes.Response
	body, err := readBody(res)
	if err != nil {
		return nil, err
	}
	header := res.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	header.Set(responseTimeHeaderName, strconv.FormatInt(sRes.ResponseTime.UnixNano(), 10))
	// always write as HTTP/1.1 with a known length, whatever the origin spoke
	stored := &http.Response{
		StatusCode:    res.StatusCode,
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
	}
	buf := &bytes.Buffer{}
	if err := stored.Write(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// readBody reads the whole response body and sets it back on the response.
func readBody(res *http.Response) ([]byte, error) {
	if res.Body == nil || res.Body == http.NoBody {
		return nil, nil
	}
	body, err := io.ReadAll(res.Body)
	res.Body.Close()
	if err != nil {
		return nil, err
	}
	res.Body = io.NopCloser(bytes.NewReader(body))
	res.ContentLength = int64(len(body))
	return body, nil
}
