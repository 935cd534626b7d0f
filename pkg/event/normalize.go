package event

import (
	"strconv"
	"strings"

	"github.com/keepmind9/cqbot/pkg/constants"
	"github.com/keepmind9/cqbot/pkg/cqcode"
	"github.com/tidwall/gjson"
)

// Options tunes normalization
type Options struct {
	// MentionAll makes an "@all" mention count as a mention of the robot.
	// Only detection is affected; the "@all" token stays in RawText.
	MentionAll bool
}

// Option mutates Options
type Option func(*Options)

// WithMentionAll toggles Options.MentionAll
func WithMentionAll(enabled bool) Option {
	return func(o *Options) {
		o.MentionAll = enabled
	}
}

// Normalize converts one inbound JSON notification into an Event.
// Unclassifiable payloads yield an Event with Valid == false and nothing else set.
func Normalize(raw []byte, opts ...Option) Event {
	var o Options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	doc := Sanitize(raw)
	if !gjson.ValidBytes(doc) {
		return Event{}
	}
	root := gjson.ParseBytes(doc)
	if !root.IsObject() {
		return Event{}
	}

	switch root.Get("post_type").String() {
	case constants.PostTypeMessage:
		switch root.Get("message_type").String() {
		case constants.MessageTypeGroup:
			return groupMessage(root, doc, o)
		case constants.MessageTypePrivate:
			return privateMessage(root, doc, o)
		}
	case constants.PostTypeNotice:
		return notice(root, doc)
	}
	return Event{}
}

func groupMessage(root gjson.Result, doc []byte, o Options) Event {
	robot := idOf(root.Get("self_id"))
	text := root.Get("raw_message").String()
	return Event{
		Kind:          GroupMessage,
		Valid:         true,
		RobotID:       robot,
		FromUser:      idOf(root.Get("sender.user_id")),
		FromGroup:     idOf(root.Get("group_id")),
		RawText:       StripMention(text, robot),
		MentionsRobot: mentioned(text, robot, o),
		Sender: Sender{
			Card:     root.Get("sender.card").String(),
			Nickname: root.Get("sender.nickname").String(),
		},
		MessageID: idOf(root.Get("message_id")),
		SubType:   root.Get("sub_type").String(),
		Time:      root.Get("time").Int(),
		Raw:       doc,
	}
}

func privateMessage(root gjson.Result, doc []byte, o Options) Event {
	robot := idOf(root.Get("self_id"))
	text := root.Get("raw_message").String()
	return Event{
		Kind:          PrivateMessage,
		Valid:         true,
		RobotID:       robot,
		FromUser:      idOf(root.Get("user_id")),
		RawText:       StripMention(text, robot),
		MentionsRobot: mentioned(text, robot, o),
		Sender:        Sender{Nickname: root.Get("sender.nickname").String()},
		MessageID:     idOf(root.Get("message_id")),
		SubType:       root.Get("sub_type").String(),
		Time:          root.Get("time").Int(),
		Raw:           doc,
	}
}

func notice(root gjson.Result, doc []byte) Event {
	return Event{
		Kind:          Notice,
		Valid:         true,
		RobotID:       idOf(root.Get("self_id")),
		NoticeType:    root.Get("notice_type").String(),
		NoticeSubType: root.Get("sub_type").String(),
		OperatorID:    idOf(root.Get("operator_id")),
		TargetUserID:  idOf(root.Get("user_id")),
		TargetGroupID: idOf(root.Get("group_id")),
		Time:          root.Get("time").Int(),
		Raw:           doc,
	}
}

// idOf reads an account/group id that may be a JSON number or a numeric string
func idOf(r gjson.Result) int64 {
	switch r.Type {
	case gjson.Number:
		return r.Int()
	case gjson.String:
		n, err := strconv.ParseInt(strings.TrimSpace(r.Str), 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

func mentioned(text string, robot int64, o Options) bool {
	if IsMentioned(text, robot) {
		return true
	}
	return o.MentionAll && strings.Contains(text, cqcode.At(constants.MentionAllTarget, ""))
}

// MentionToken is the exact markup that mentions account id
func MentionToken(id int64) string {
	return cqcode.AtID(id)
}

// IsMentioned reports whether text contains the exact mention token of id
func IsMentioned(text string, id int64) bool {
	return strings.Contains(text, MentionToken(id))
}

// StripMention removes every mention token of id and trims the result
func StripMention(text string, id int64) string {
	if text == "" {
		return ""
	}
	return strings.TrimSpace(strings.ReplaceAll(text, MentionToken(id), ""))
}

// Sanitize drops control characters (code points 0..28) that some gateway
// builds leak into payloads and that make the JSON unparsable. The input is
// not modified.
func Sanitize(raw []byte) []byte {
	out := make([]byte, 0, len(raw))
	for _, b := range raw {
		if b <= constants.ControlCharCeiling {
			continue
		}
		out = append(out, b)
	}
	return out
}
