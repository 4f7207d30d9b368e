package server

/*
This file contains requests that can be made against a running server's admin API from any process.
*/

import (
	"strings"

	"resty.dev/v3"
)

// CONTENT_TYPE is what the admin API answers with.
const CONTENT_TYPE = "application/json"

// FetchStatus spawns a new resty client and uses it to make a status request against the admin API at addrStr.
//
// addrStr should be of the form "http://<ip>:<port>"
func FetchStatus(addrStr string) (*resty.Response, StatusResp, error) {
	cli := resty.New()
	defer cli.Close()

	// compose the url
	addrStr = strings.TrimSuffix(addrStr, "/")
	url := addrStr + EP_STATUS

	sr := StatusResp{}

	res, err := cli.R().
		SetExpectResponseContentType(CONTENT_TYPE).
		SetResult(&(sr.Body)).
		Get(url)
	return res, sr, err
}
