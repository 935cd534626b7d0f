// Package cqcode builds CQ code markup, the inline segment syntax the gateway
// uses inside message text (for example "[CQ:at,qq=10001]").
//
// Builders only assemble strings; optional arguments are omitted when they
// hold their zero value. Values are not escaped, use Escape for untrusted text.
package cqcode

import (
	"strconv"
	"strings"
)

// Code is a single CQ code segment under construction
type Code struct {
	kind string
	args []string
}

// New starts a segment of the given type, e.g. New("face")
func New(kind string) *Code {
	return &Code{kind: kind}
}

// Set appends key=value unconditionally
func (c *Code) Set(key, value string) *Code {
	c.args = append(c.args, key+"="+value)
	return c
}

// SetIf appends key=value when value is not empty
func (c *Code) SetIf(key, value string) *Code {
	if value == "" {
		return c
	}
	return c.Set(key, value)
}

// SetInt appends key=n when n is not zero
func (c *Code) SetInt(key string, n int64) *Code {
	if n == 0 {
		return c
	}
	return c.Set(key, strconv.FormatInt(n, 10))
}

// String renders the segment
func (c *Code) String() string {
	var b strings.Builder
	b.WriteString("[CQ:")
	b.WriteString(c.kind)
	for _, a := range c.args {
		b.WriteByte(',')
		b.WriteString(a)
	}
	b.WriteByte(']')
	return b.String()
}

var escaper = strings.NewReplacer("&", "&amp;", "[", "&#91;", "]", "&#93;", ",", "&#44;")

// Escape encodes the characters that would otherwise terminate a CQ code value
func Escape(s string) string {
	return escaper.Replace(s)
}

// At mentions qq. qq may be an account id or "all". name is only shown when
// the account is not found in the group.
func At(qq, name string) string {
	return New("at").Set("qq", qq).SetIf("name", name).String()
}

// AtID mentions a numeric account id
func AtID(id int64) string {
	return At(strconv.FormatInt(id, 10), "")
}

// Face is a built-in emoticon
func Face(id int) string {
	return New("face").Set("id", strconv.Itoa(id)).String()
}

// RecordOptions tunes a voice segment
type RecordOptions struct {
	Magic   bool
	Cache   bool
	Timeout int
}

// Record sends a voice clip from a path or URL
func Record(file string, opts RecordOptions) string {
	c := New("record").Set("file", file)
	if opts.Magic {
		c.Set("magic", "1")
	}
	if opts.Cache {
		c.Set("cache", "1")
	}
	return c.SetInt("timeout", int64(opts.Timeout)).String()
}

// Video sends a short video with a jpg cover
func Video(file, cover string) string {
	return New("video").Set("file", file).SetIf("cover", cover).String()
}

// Share is a link card
func Share(url, title, content, image string) string {
	return New("share").Set("url", url).Set("title", title).
		SetIf("content", content).SetIf("image", image).String()
}

// ImageOptions tunes an image segment
type ImageOptions struct {
	// Type is "flash" for a flash picture or "show" for a show picture
	Type    string
	SubType int
	URL     string
	Cache   int
	// ID is the show-picture effect id; 0 selects DefaultImageEffect
	ID int
}

// DefaultImageEffect is the effect id used when ImageOptions.ID is zero
const DefaultImageEffect = 40000

// Image sends a picture from a path, URL or base64:// payload
func Image(file string, opts ImageOptions) string {
	id := opts.ID
	if id == 0 {
		id = DefaultImageEffect
	}
	return New("image").Set("file", file).
		SetIf("type", opts.Type).
		SetInt("subType", int64(opts.SubType)).
		SetIf("url", opts.URL).
		SetInt("cache", int64(opts.Cache)).
		Set("id", strconv.Itoa(id)).String()
}

// Reply quotes message id
func Reply(id int64) string {
	return New("reply").Set("id", strconv.FormatInt(id, 10)).String()
}

// CustomReply quotes custom text as if qq had sent it at time with seq
func CustomReply(text string, qq, time, seq int64) string {
	return New("reply").Set("text", text).SetInt("qq", qq).
		SetInt("time", time).SetInt("seq", seq).String()
}

// Poke pokes a group member
func Poke(qq int64) string {
	return New("poke").Set("qq", strconv.FormatInt(qq, 10)).String()
}

// Gift sends gift id to qq
func Gift(qq int64, id int) string {
	return New("gift").Set("qq", strconv.FormatInt(qq, 10)).Set("id", strconv.Itoa(id)).String()
}

// Forward references a merged-forward message
func Forward(id string) string {
	return New("forward").Set("id", id).String()
}

// Xml is a rich xml card; data must already be entity-escaped
func Xml(data string) string {
	return New("xml").Set("data", data).String()
}

// Json is a rich json card; data must already be entity-escaped.
// A non-zero resid routes it through the rich-text channel.
func Json(data string, resid int) string {
	return New("json").Set("data", data).SetInt("resid", int64(resid)).String()
}

// Tts reads text aloud through the gateway's text-to-speech
func Tts(text string) string {
	return New("tts").Set("text", text).String()
}
