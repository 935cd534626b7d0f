package action

import (
	"strconv"

	"github.com/keepmind9/cqbot/pkg/cqcode"
)

// Action names used by the send helpers
const (
	OpSendMsg        = "send_msg"
	OpSendPrivateMsg = "send_private_msg"
)

func id(n int64) string {
	return strconv.FormatInt(n, 10)
}

// SendPrivateMsg sends text to a friend
func (c *Client) SendPrivateMsg(userID int64, text string) <-chan Result {
	return c.Go(OpSendMsg, map[string]string{
		"message_type": "private",
		"user_id":      id(userID),
		"message":      text,
	})
}

// SendGroupPrivateMsg sends a temporary session message to a member of groupID
func (c *Client) SendGroupPrivateMsg(groupID, userID int64, text string) <-chan Result {
	return c.Go(OpSendPrivateMsg, map[string]string{
		"user_id":  id(userID),
		"group_id": id(groupID),
		"message":  text,
	})
}

// SendGroupMsg sends text to a group, optionally anonymously
func (c *Client) SendGroupMsg(groupID int64, text string, anonymous bool) <-chan Result {
	return c.Go(OpSendMsg, map[string]string{
		"message_type": "group",
		"group_id":     id(groupID),
		"message":      text,
		"anonymous":    strconv.FormatBool(anonymous),
	})
}

func picture(flash bool) cqcode.ImageOptions {
	opts := cqcode.ImageOptions{Type: "show", ID: 40004}
	if flash {
		opts.Type = "flash"
	}
	return opts
}

// SendPrivateImg sends a picture (path, URL or base64://) to a friend
func (c *Client) SendPrivateImg(userID int64, src string, flash bool) <-chan Result {
	return c.SendPrivateMsg(userID, cqcode.Image(src, picture(flash)))
}

// SendGroupPrivateImg sends a picture through a group temporary session
func (c *Client) SendGroupPrivateImg(groupID, userID int64, src string, flash bool) <-chan Result {
	return c.SendGroupPrivateMsg(groupID, userID, cqcode.Image(src, picture(flash)))
}

// SendGroupImg sends a picture to a group
func (c *Client) SendGroupImg(groupID int64, src string, flash bool) <-chan Result {
	opts := cqcode.ImageOptions{ID: 40004}
	if flash {
		opts.Type = "flash"
	}
	return c.SendGroupMsg(groupID, cqcode.Image(src, opts), false)
}

// SendPrivateRecord sends a voice clip to a friend
func (c *Client) SendPrivateRecord(userID int64, src string) <-chan Result {
	return c.SendPrivateMsg(userID, cqcode.Record(src, cqcode.RecordOptions{}))
}

// SendGroupPrivateRecord sends a voice clip through a group temporary session
func (c *Client) SendGroupPrivateRecord(groupID, userID int64, src string) <-chan Result {
	return c.SendGroupPrivateMsg(groupID, userID, cqcode.Record(src, cqcode.RecordOptions{}))
}

// SendGroupRecord sends a voice clip to a group
func (c *Client) SendGroupRecord(groupID int64, src string) <-chan Result {
	return c.SendGroupMsg(groupID, cqcode.Record(src, cqcode.RecordOptions{}), false)
}
