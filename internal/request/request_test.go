/*
Copyright 2024 Phantom Vision Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package request

import (
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
)

func TestToJsonReq(t *testing.T) {
	buf, err := ToJsonReq(map[string]string{"hello": "world"})
	assert.NoError(t, err)
	assert.JSONEq(t, `{"hello":"world"}`, buf.String())
}

func TestCallDecodesResponse(t *testing.T) {
	httpmock.ActivateNonDefault(client)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", "https://example.com/hook",
		httpmock.NewStringResponder(http.StatusOK, `{"ok":true}`))

	payload, err := ToJsonReq(map[string]string{"text": "ping"})
	assert.NoError(t, err)

	req, err := http.NewRequest("POST", "https://example.com/hook", payload)
	assert.NoError(t, err)

	var response map[string]interface{}
	resp, err := Call(req, &response)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, response["ok"])
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
}
