// ABOUTME: Format-change payload parsing
// ABOUTME: Parses "audio/raw, format=F32LE, rate=48000, channels=2" style parameters
package audio

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	MediaTypeAudio  = "audio"
	MediaSubtypeRaw = "raw"
)

// Param is the payload of a format-change notification.
//
// The first comma-separated token is "<mediaType>/<mediaSubtype>", the rest are
// key=value properties.
type Param string

// NewParam builds a param from a media type pair and alternating key, value properties
func NewParam(mediaType, mediaSubtype string, kv ...string) Param {
	var b strings.Builder
	b.WriteString(mediaType)
	b.WriteByte('/')
	b.WriteString(mediaSubtype)
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(&b, ", %s=%s", kv[i], kv[i+1])
	}
	return Param(b.String())
}

// ParsedParam is a param split into its media type pair and properties
type ParsedParam struct {
	MediaType    string
	MediaSubtype string
	Props        map[string]string
}

// Parse splits the param. It only fails on syntax, not on content.
func (p Param) Parse() (ParsedParam, error) {
	tokens := strings.Split(string(p), ",")

	media := strings.TrimSpace(tokens[0])
	mediaType, mediaSubtype, ok := strings.Cut(media, "/")
	if !ok || mediaType == "" || mediaSubtype == "" || strings.Contains(mediaSubtype, "/") {
		return ParsedParam{}, fmt.Errorf("%w: media %q", ErrMalformedParam, media)
	}

	parsed := ParsedParam{
		MediaType:    strings.ToLower(mediaType),
		MediaSubtype: strings.ToLower(mediaSubtype),
		Props:        make(map[string]string, len(tokens)-1),
	}

	for _, tok := range tokens[1:] {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		key, value, ok := strings.Cut(tok, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return ParsedParam{}, fmt.Errorf("%w: property %q", ErrMalformedParam, tok)
		}
		parsed.Props[strings.ToLower(key)] = strings.TrimSpace(value)
	}

	return parsed, nil
}

// IsRawAudio reports whether the media pair is audio/raw
func (pp ParsedParam) IsRawAudio() bool {
	return pp.MediaType == MediaTypeAudio && pp.MediaSubtype == MediaSubtypeRaw
}

// Format extracts the raw audio format from the properties
func (pp ParsedParam) Format() (Format, error) {
	if !pp.IsRawAudio() {
		return Format{}, fmt.Errorf("%w: %s/%s", ErrNotRaw, pp.MediaType, pp.MediaSubtype)
	}

	enc := Encoding(strings.ToUpper(pp.Props["format"]))
	if enc != EncodingF32LE {
		return Format{}, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, pp.Props["format"])
	}

	rate, err := positiveInt(pp.Props, "rate")
	if err != nil {
		return Format{}, err
	}
	channels, err := positiveInt(pp.Props, "channels")
	if err != nil {
		return Format{}, err
	}

	return Format{SampleRate: rate, Channels: channels, Encoding: enc}, nil
}

func positiveInt(props map[string]string, key string) (int, error) {
	v, ok := props[key]
	if !ok {
		return 0, fmt.Errorf("%w: missing %s", ErrInvalidFormat, key)
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidFormat, key, v)
	}
	return n, nil
}
