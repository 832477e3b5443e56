package sdp

import (
	"fmt"
	"strconv"
	"strings"
)

// Media is one media description ("m=" line and the lines that follow it).
type Media struct {
	Type   string
	Port   int
	Proto  string
	Format []string

	Info       string      // Optional
	Connection *Connection // Optional
	Attributes []Attribute
}

// GetAttr returns the value of the first attribute with the given key, or ""
// if there is none.
func (m *Media) GetAttr(key string) string {
	return firstAttr(m.Attributes, key)
}

// GetAttrs returns the values of every attribute with the given key, in order.
func (m *Media) GetAttrs(key string) []string {
	var values []string
	for _, a := range m.Attributes {
		if a.Key == key {
			values = append(values, a.Value)
		}
	}
	return values
}

// IsRTP reports whether the transport protocol is an RTP profile this package
// knows how to describe (RTP/AVP and its secure variant RTP/SAVP).
func (m *Media) IsRTP() bool {
	switch m.Proto {
	case "RTP/AVP", "RTP/SAVP":
		return true
	}
	return false
}

func (m *Media) String() string {
	var w writer
	w.Writef("m=%s %d %s %s\r\n", m.Type, m.Port, m.Proto, strings.Join(m.Format, " "))
	if m.Info != "" {
		w.Write("i=", m.Info, "\r\n")
	}
	if m.Connection != nil {
		w.Write("c=", m.Connection.String(), "\r\n")
	}
	for _, a := range m.Attributes {
		w.Write("a=", a.String(), "\r\n")
	}
	return w.String()
}

// Returns the remaining unparsed SDP text, starting at the next media
// description if any, as 'rtext'.
func parseMedia(text string) (m Media, rtext string, err error) {
	line, more := nextLine(text)
	if !strings.HasPrefix(line, "m=") {
		return m, text, fmt.Errorf("invalid media line: %q", line)
	}

	// m=<media> <port>[/<number of ports>] <proto> <fmt> ...
	fields := strings.Fields(line[2:])
	if len(fields) < 3 {
		return m, text, fmt.Errorf("invalid media line: %q", line)
	}
	m.Type = fields[0]
	port := fields[1]
	if i := strings.IndexByte(port, '/'); i >= 0 {
		port = port[:i]
	}
	if m.Port, err = strconv.Atoi(port); err != nil {
		return m, text, &sdpParseError{"media", line, err}
	}
	m.Proto = fields[2]
	m.Format = fields[3:]

	var typecode byte
	var value string
	for text = more; text != ""; text = more {
		line, more = nextLine(text)
		if line == "" {
			continue
		}
		typecode, value, err = splitTypeValue(line)
		switch typecode {
		case 'm':
			// Start of the next media description.
			return m, text, nil
		case 'i':
			m.Info = value
		case 'c':
			var c Connection
			c, err = parseConnection(value)
			m.Connection = &c
		case 'a':
			var a Attribute
			a, err = parseAttribute(value)
			m.Attributes = append(m.Attributes, a)
		}

		if err != nil {
			return m, more, &sdpParseError{"media", line, err}
		}
	}
	return m, text, nil
}
