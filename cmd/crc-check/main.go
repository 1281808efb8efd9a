// crc-check verifies the CRC trailer of PDUs and forwards the good ones.
//
// PDUs arrive as UDP datagrams (-listen) or as hex lines from a serial port
// (-serial), a file (-in) or stdin. Accepted PDUs go to -ok-dest over UDP or
// to stdout as hex lines; rejected PDUs go to -fail-dest or are dropped.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/hashicorp/logutils"
	"github.com/jancona/pducrc/config"
	"github.com/jancona/pducrc/crc"
	"github.com/jancona/pducrc/crccheck"
	"github.com/jancona/pducrc/indicator"
	"github.com/jancona/pducrc/link"
	"github.com/jancona/pducrc/pdu"
)

const queueSize = 64

var (
	configArg   *string = flag.String("config", "", "Config file (.ini or .yaml)")
	presetArg   *string = flag.String("preset", "", "Named CRC model (e.g. CRC-32, CRC-16/X-25)")
	bitsArg     *int    = flag.Int("bits", 32, "CRC size in bits (multiple of 8, 8-64)")
	polyArg     *string = flag.String("poly", "0x04C11DB7", "CRC polynomial, MSB-first notation")
	initArg     *string = flag.String("init", "0xFFFFFFFF", "Initial register value")
	xorArg      *string = flag.String("xor", "0xFFFFFFFF", "Final XOR value")
	refInArg    *bool   = flag.Bool("refin", true, "Input is processed LSB-first")
	refOutArg   *bool   = flag.Bool("refout", true, "Result is reflected before the final XOR")
	swapArg     *bool   = flag.Bool("swap", false, "CRC is stored little-endian in the PDU")
	discardArg  *bool   = flag.Bool("discard", false, "Remove the CRC from accepted PDUs")
	skipArg     *int    = flag.Int("skip", 0, "Header bytes excluded from the CRC")
	appendArg   *bool   = flag.Bool("append", false, "Append a CRC to each PDU instead of checking it")
	listenArg   *string = flag.String("listen", "", "UDP address to receive PDUs on")
	serialArg   *string = flag.String("serial", "", "Serial port delivering hex PDU lines")
	baudArg     *int    = flag.Int("baud", config.DefaultBaud, "Serial port baud rate")
	inArg       *string = flag.String("in", "", "File of hex PDU lines (default stdin)")
	okDestArg   *string = flag.String("ok-dest", "", "UDP destination for accepted PDUs (default stdout)")
	failDestArg *string = flag.String("fail-dest", "", "UDP destination for rejected PDUs (default drop)")
	gpioChipArg *string = flag.String("gpio-chip", config.DefaultGPIOChip, "GPIO chip for the indicator lines")
	okLineArg   *int    = flag.Int("ok-line", -1, "GPIO line pulsed for each accepted PDU")
	failLineArg *int    = flag.Int("fail-line", -1, "GPIO line pulsed for each rejected PDU")
	isDebugArg  *bool   = flag.Bool("debug", false, "Emit debug log messages")
	logDestArg  *string = flag.String("log", "", "Device/file for log (default stderr)")
	listArg     *bool   = flag.Bool("list", false, "List the named CRC models and exit")
	helpArg     *bool   = flag.Bool("h", false, "Print arguments")
)

func main() {
	flag.Parse()

	if *helpArg {
		flag.Usage()
		return
	}
	if *listArg {
		for _, p := range crc.Presets {
			fmt.Println(p)
		}
		return
	}
	setupLogging()

	settings, err := loadSettings()
	if err != nil {
		log.Fatalf("[ERROR] %v", err)
	}
	checker, err := crccheck.New(settings.CRC)
	if err != nil {
		log.Fatalf("[ERROR] Error creating CRC check: %v", err)
	}
	log.Printf("[INFO] %s: %s, swap=%v discard=%v skip=%d", settings.Preset, settings.CRC.Params(),
		settings.CRC.SwapEndianness, settings.CRC.DiscardCRC, settings.CRC.SkipHeaderBytes)

	src, err := openSource(settings.IO)
	if err != nil {
		log.Fatalf("[ERROR] %v", err)
	}
	okSink, err := openSink(settings.IO.OkDest, link.NewHexLineSink(os.Stdout))
	if err != nil {
		log.Fatalf("[ERROR] ok output: %v", err)
	}
	failSink, err := openSink(settings.IO.FailDest, nil)
	if err != nil {
		log.Fatalf("[ERROR] fail output: %v", err)
	}

	// close the source on a signal so the pipeline drains and exits; a
	// blocked stdin read can't be interrupted, so a second signal exits
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalChan
		log.Print("[INFO] Received an interrupt, stopping...")
		src.Close()
		<-signalChan
		os.Exit(1)
	}()

	go src.Run()
	if *appendArg {
		runAppend(checker, src.Source(), okSink)
	} else {
		var observers []func(pdu.Routed)
		if ind := openIndicator(settings.IO); ind != nil {
			defer ind.Close()
			observers = append(observers, ind.Observe)
		}
		stats := runCheck(checker, src.Source(), okSink, failSink, observers...)
		log.Printf("[INFO] %d PDUs ok, %d failed", stats.OK, stats.Fail)
	}

	if okSink != nil {
		okSink.Close()
	}
	if failSink != nil {
		failSink.Close()
	}
}

func setupLogging() {
	var err error
	minLogLevel := "INFO"
	if *isDebugArg {
		minLogLevel = "DEBUG"
	}
	logWriter := os.Stderr
	if *logDestArg != "" {
		logWriter, err = os.OpenFile(*logDestArg, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			log.Fatalf("Error opening log output, exiting: %v", err)
		}
	}

	filter := &logutils.LevelFilter{
		Levels:   []logutils.LogLevel{"DEBUG", "INFO", "ERROR"},
		MinLevel: logutils.LogLevel(minLogLevel),
		Writer:   logWriter,
	}
	log.SetOutput(filter)
	log.Print("[DEBUG] Debug is on")
}

// loadSettings reads -config, if given, then applies the flags that were
// set explicitly on the command line.
func loadSettings() (config.Settings, error) {
	s := config.Default()
	if *configArg != "" {
		var err error
		s, err = config.Load(*configArg)
		if err != nil {
			return s, err
		}
	}
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if err := applyFlags(&s, set); err != nil {
		return s, err
	}
	return s, s.CRC.Validate()
}

func applyFlags(s *config.Settings, set map[string]bool) error {
	if set["preset"] {
		p, ok := crc.Lookup(*presetArg)
		if !ok {
			return fmt.Errorf("unknown CRC preset %q (see -list)", *presetArg)
		}
		layout := s.CRC
		s.Preset = p.Name
		s.CRC = crccheck.FromParams(p)
		s.CRC.SwapEndianness = layout.SwapEndianness
		s.CRC.DiscardCRC = layout.DiscardCRC
		s.CRC.SkipHeaderBytes = layout.SkipHeaderBytes
	}
	uints := []struct {
		name string
		arg  *string
		dst  *uint64
	}{
		{"poly", polyArg, &s.CRC.Poly},
		{"init", initArg, &s.CRC.InitialValue},
		{"xor", xorArg, &s.CRC.FinalXor},
	}
	for _, u := range uints {
		if !set[u.name] {
			continue
		}
		v, err := config.ParseUint(*u.arg)
		if err != nil {
			return fmt.Errorf("-%s: %w", u.name, err)
		}
		*u.dst = v
		s.Preset = "custom"
	}
	if set["bits"] {
		s.CRC.NumBits = *bitsArg
		s.Preset = "custom"
	}
	if set["refin"] {
		s.CRC.InputReflected = *refInArg
		s.Preset = "custom"
	}
	if set["refout"] {
		s.CRC.ResultReflected = *refOutArg
		s.Preset = "custom"
	}
	if set["swap"] {
		s.CRC.SwapEndianness = *swapArg
	}
	if set["discard"] {
		s.CRC.DiscardCRC = *discardArg
	}
	if set["skip"] {
		s.CRC.SkipHeaderBytes = *skipArg
	}
	if set["listen"] {
		s.IO.Listen = *listenArg
	}
	if set["serial"] {
		s.IO.Serial = *serialArg
	}
	if set["baud"] {
		s.IO.Baud = *baudArg
	}
	if set["ok-dest"] {
		s.IO.OkDest = *okDestArg
	}
	if set["fail-dest"] {
		s.IO.FailDest = *failDestArg
	}
	if set["gpio-chip"] {
		s.IO.GPIOChip = *gpioChipArg
	}
	if set["ok-line"] {
		s.IO.OkLine = *okLineArg
	}
	if set["fail-line"] {
		s.IO.FailLine = *failLineArg
	}
	return nil
}

func openSource(c config.IO) (link.Source, error) {
	switch {
	case c.Listen != "":
		s, err := link.NewUDPSource(c.Listen, queueSize)
		if err != nil {
			return nil, fmt.Errorf("UDP source %s: %w", c.Listen, err)
		}
		log.Printf("[INFO] Listening for PDUs on %s", s.LocalAddr())
		return s, nil
	case c.Serial != "":
		port, err := link.OpenSerial(c.Serial, c.Baud)
		if err != nil {
			return nil, err
		}
		return link.NewHexLineSource(port, c.Serial, queueSize), nil
	case *inArg != "":
		f, err := os.Open(*inArg)
		if err != nil {
			return nil, fmt.Errorf("failed to open input '%s': %w", *inArg, err)
		}
		return link.NewHexLineSource(f, *inArg, queueSize), nil
	}
	return link.NewHexLineSource(io.NopCloser(os.Stdin), "stdin", queueSize), nil
}

// openSink returns a UDP sink for dest, or def when dest is empty.
func openSink(dest string, def link.Sink) (link.Sink, error) {
	if dest == "" {
		if def == nil {
			return nil, nil
		}
		return def, nil
	}
	s, err := link.NewUDPSink(dest)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func openIndicator(c config.IO) *indicator.Indicator {
	if c.OkLine < 0 && c.FailLine < 0 {
		return nil
	}
	ind, err := indicator.OpenGPIO(c.GPIOChip, c.OkLine, c.FailLine, indicator.DefaultPulse)
	if err != nil {
		log.Printf("[ERROR] GPIO indicator disabled: %v", err)
		return nil
	}
	return ind
}

// runCheck routes every PDU from in through checker and blocks until in is
// closed and both outputs are drained.
func runCheck(checker *crccheck.Checker, in chan pdu.PDU, ok, fail link.Sink, observers ...func(pdu.Routed)) pdu.Stats {
	b := pdu.NewBlock(in, checker, queueSize, observers...)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		link.Pump(b.Ok(), ok, "ok")
	}()
	go func() {
		defer wg.Done()
		link.Pump(b.Fail(), fail, "fail")
	}()
	wg.Wait()
	return b.Stats()
}

func runAppend(checker *crccheck.Checker, in chan pdu.PDU, out link.Sink) {
	for p := range in {
		data, err := checker.Append(p.Data)
		if err != nil {
			log.Printf("[INFO] skipping %s: %v", p, err)
			continue
		}
		if out == nil {
			continue
		}
		if err := out.Send(pdu.PDU{Data: data, Meta: p.Meta}); err != nil {
			log.Printf("[ERROR] sending %s: %v", p, err)
		}
	}
}
