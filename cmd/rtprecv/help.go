package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	flag "github.com/spf13/pflag"
)

var (
	flagListen        string
	flagTCP           bool
	flagCapture       string
	flagSDP           string
	flagMediaIndex    int
	flagOutput        string
	flagWebsocket     string
	flagSRTPKey       string
	flagSRTPSalt      string
	flagSRTPCipher    string
	flagSRTPAuth      string
	flagSRTPTagLen    int
	flagSRTPRCCMode   int
	flagSRTPRCCRate   uint16
	flagMaxDropout    int
	flagMaxMisorder   int
	flagMaxSources    int
	flagSourceTimeout time.Duration
	flagReceiveBuffer int
	flagLogFile       string
	flagHelp          bool
	flagVersion       bool
)

func init() {
	flag.StringVarP(&flagListen, "listen", "l", ":5004", "Local address to receive on")
	flag.BoolVarP(&flagTCP, "tcp", "t", false, "Accept RFC 4571 framed RTP over TCP")
	flag.StringVarP(&flagCapture, "pcap", "r", "", "Replay a pcap or pcapng capture file")
	flag.StringVarP(&flagSDP, "sdp", "s", "", "Session description file")
	flag.IntVarP(&flagMediaIndex, "media", "m", 0, "Media description to receive, counting from 0")
	flag.StringVarP(&flagOutput, "output", "o", "", "Write elementary streams to this directory")
	flag.StringVarP(&flagWebsocket, "websocket", "w", "", "Serve elementary streams over WebSocket on this address")

	flag.StringVar(&flagSRTPKey, "srtp-key", "", "SRTP master key, in hex")
	flag.StringVar(&flagSRTPSalt, "srtp-salt", "", "SRTP master salt, in hex")
	flag.StringVar(&flagSRTPCipher, "srtp-cipher", "aes-cm", "SRTP cipher")
	flag.StringVar(&flagSRTPAuth, "srtp-auth", "hmac-sha1", "SRTP authentication")
	flag.IntVar(&flagSRTPTagLen, "srtp-tag-length", 0, "SRTP authentication tag length, in bytes")
	flag.IntVar(&flagSRTPRCCMode, "srtp-rcc-mode", 0, "RFC 4771 roll-over counter carry mode")
	flag.Uint16Var(&flagSRTPRCCRate, "srtp-rcc-rate", 1, "Packets between roll-over counter carries")

	flag.IntVar(&flagMaxDropout, "max-dropout", 3000, "Largest sequence jump accepted without resynchronizing")
	flag.IntVar(&flagMaxMisorder, "max-misorder", 100, "Largest sequence step back accepted as reordering")
	flag.IntVar(&flagMaxSources, "max-sources", 1, "Maximum number of simultaneous sources")
	flag.DurationVar(&flagSourceTimeout, "source-timeout", 5*time.Second, "Destroy sources silent for this long")
	flag.IntVar(&flagReceiveBuffer, "rcvbuf", 0, "Socket receive buffer size, in bytes")
	flag.StringVar(&flagLogFile, "log-file", "", "Write the log to a rotated file instead of stderr")

	flag.BoolVarP(&flagHelp, "help", "h", false, "Print usage information and exit")
	flag.BoolVarP(&flagVersion, "version", "v", false, "Print version information and exit")
}

const helpString = `Receive RTP media streams and extract their elementary streams

Usage: rtprecv [OPTION]...

Input:
  -l, --listen=ADDR      Local address to receive on (default: :5004)
  -t, --tcp              Accept RFC 4571 framed RTP over TCP instead of UDP
  -r, --pcap=FILE        Replay the UDP datagrams of a pcap or pcapng file,
                         keeping those sent to the --listen port (if set)
  -s, --sdp=FILE         Session description with the payload types. Without
                         it, only the static RFC 3551 payload types are known
  -m, --media=NUM        Media description to use (default: 0)

SRTP:
      --srtp-key=HEX     Master key (enables SRTP)
      --srtp-salt=HEX    Master salt
      --srtp-cipher=NAME aes-cm or null (default: aes-cm)
      --srtp-auth=NAME   hmac-sha1 or null (default: hmac-sha1)
      --srtp-tag-length=NUM
                         Authentication tag length, in bytes (default: 10)
      --srtp-rcc-mode=NUM
                         RFC 4771 roll-over counter carry mode, 0 to 3
      --srtp-rcc-rate=NUM
                         Packets between ROC carries (default: 1)

Output:
  -o, --output=DIR       Write one file per source and payload type
  -w, --websocket=ADDR   Serve streams to WebSocket clients on ADDR

Reception:
      --max-dropout=NUM  Sequence jump accepted without resync (default: 3000)
      --max-misorder=NUM Sequence step back accepted as reordering (default: 100)
      --max-sources=NUM  Simultaneous sources (default: 1)
      --source-timeout=DURATION
                         Destroy silent sources after this long (default: 5s)
      --rcvbuf=NUM       Socket receive buffer size, in bytes

Miscellaneous:
      --log-file=FILE    Write the log to FILE, rotated by size
  -h, --help             Prints this help message and exits
  -v, --version          Prints version information and exits

Log levels are set with the LOGLEVEL environment variable, for example
LOGLEVEL=info,rtp=debug.

Please report bugs to: aloha@lanikailabs.com`

// Help information is printed and program exits
func help() {
	r := color.New(color.FgRed)
	y := color.New(color.FgYellow)
	b := color.New(color.FgCyan)

	r.Printf("rtp")
	y.Printf("recv ")
	b.Println(version)
	fmt.Println()
	fmt.Println(helpString)
}
