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

package notification

import (
	"fmt"
	"net/http"
	"time"

	"github.com/bencullen0123-byte/Phantom-Vision-sub000/config"
	"github.com/bencullen0123-byte/Phantom-Vision-sub000/internal/request"
	"github.com/sirupsen/logrus"
)

type Slack struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

func slackNotification(err error) error {
	conf, e := config.Fetch()
	if e != nil {
		return e
	}
	if conf.Notification.Slack.WebhookUrl == "" {
		return nil
	}

	data := Slack{
		Text: fmt.Sprintf(":red_circle: *%s error at %s*\n```%s```", conf.ProjectName, time.Now().Format(time.RFC1123), err.Error()),
	}

	payload, e := request.ToJsonReq(&data)
	if e != nil {
		return e
	}

	req, e := http.NewRequest("POST", conf.Notification.Slack.WebhookUrl, payload)
	if e != nil {
		return e
	}

	var response map[string]interface{}
	_, e = request.Call(req, &response)
	if e != nil {
		return e
	}
	return nil
}

// NotifyError reports a system error to the configured channel. Delivery
// happens in the background and never blocks the caller.
func NotifyError(systemError error) error {
	go func() {
		if err := slackNotification(systemError); err != nil {
			logrus.Error("Error sending notification: ", err)
		}
	}()
	return nil
}
