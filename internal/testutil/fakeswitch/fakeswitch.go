// Package fakeswitch simulates the CLI of a Cisco IOS access switch behind a
// ports.Channel so drivers can be tested without a device.
package fakeswitch

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/carlosrabelo/vlanctl/internal/domain/entities"
	"github.com/carlosrabelo/vlanctl/internal/domain/ports"
)

type mode int

const (
	modeUserExec mode = iota + 1
	modePrivExec
	modeGlobalConfig
	modeVlanConfig
)

// pending sub-prompt the simulator is waiting an answer for
type question int

const (
	noQuestion question = iota
	askEnablePassword
	askTFTPAddress
	askTFTPFilename
	askTFTPConfirm
	askCopyDestination
)

const invalidInput = "% Invalid input detected at '^' marker."

// Options select the behaviour of the simulated device
type Options struct {
	Hostname        string // defaults to SW1
	EnableSecret    string // empty lets enable through without a password
	StartPrivileged bool
	NoEnable        bool // enable is an unknown command

	ChunkSize int  // bytes returned per read, 0 returns everything
	Silent    bool // never send anything
	NoPrompt  bool // answer commands but never print the prompt again

	PageLines            int  // paginate output with --More-- every n lines
	IgnoreTerminalLength bool // keep paging after terminal length 0

	WriteMemoryUnsupported bool
	CopyStartupUnsupported bool
	TFTPConfirm            bool // ask for overwrite confirmation
	TFTPError              bool // report %Error after the filename
	TFTPSkipFilename       bool // return to the prompt right after the address

	Vlans []entities.VlanRecord // user VLANs present at start
}

// Transfer records one copy to a TFTP server
type Transfer struct {
	Address  string
	Filename string
}

// Switch is the simulated device. It implements ports.Channel.
type Switch struct {
	opts Options

	mu        sync.Mutex
	mode      mode
	hostname  string
	vlans     map[int]string
	vlanOrder []int
	curVlan   int
	question  question
	tries     int
	paging    bool
	transfer  Transfer
	closed    bool

	input     []byte
	output    []byte
	held      []string // lines waiting behind a --More-- marker
	moreShown bool
	history   []string

	transfers []Transfer
	saves     int
}

var _ ports.Channel = (*Switch)(nil)

// New boots a simulated switch which immediately shows its prompt
func New(opts Options) *Switch {
	if opts.Hostname == "" {
		opts.Hostname = "SW1"
	}
	sw := &Switch{
		opts:     opts,
		mode:     modeUserExec,
		hostname: opts.Hostname,
		vlans:    make(map[int]string),
		paging:   opts.PageLines > 0,
	}
	if opts.StartPrivileged {
		sw.mode = modePrivExec
	}
	sw.addVlan(1, "default")
	for _, v := range opts.Vlans {
		id, err := strconv.Atoi(v.ID)
		if err == nil {
			sw.addVlan(id, v.Name)
		}
	}
	for id, name := range map[int]string{1002: "fddi-default", 1003: "token-ring-default", 1004: "fddinet-default", 1005: "trnet-default"} {
		sw.addVlan(id, name)
	}
	sw.emit("\r\n" + sw.prompt())
	return sw
}

// Write feeds keystrokes to the device
func (sw *Switch) Write(p []byte) (int, error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.closed {
		return 0, net.ErrClosed
	}
	for _, b := range p {
		if len(sw.held) > 0 && len(sw.input) == 0 && b == ' ' {
			sw.nextPage()
			continue
		}
		switch b {
		case '\r':
		case '\n':
			line := string(sw.input)
			sw.input = sw.input[:0]
			sw.handleLine(line)
		default:
			sw.input = append(sw.input, b)
		}
	}
	return len(p), nil
}

// ReadAvailable implements ports.Channel
func (sw *Switch) ReadAvailable(ctx context.Context, wait time.Duration) ([]byte, error) {
	if chunk, err := sw.take(); chunk != nil || err != nil {
		return chunk, err
	}
	if wait <= 0 {
		return nil, nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return sw.take()
	}
}

func (sw *Switch) take() ([]byte, error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.closed {
		return nil, net.ErrClosed
	}
	if len(sw.output) == 0 {
		return nil, nil
	}
	n := len(sw.output)
	if sw.opts.ChunkSize > 0 && n > sw.opts.ChunkSize {
		n = sw.opts.ChunkSize
	}
	chunk := make([]byte, n)
	copy(chunk, sw.output[:n])
	sw.output = sw.output[n:]
	return chunk, nil
}

// Close implements ports.Channel
func (sw *Switch) Close() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.closed = true
	return nil
}

// Closed reports whether the channel was released
func (sw *Switch) Closed() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.closed
}

// Hostname returns the configured device name
func (sw *Switch) Hostname() string {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.hostname
}

// Vlans returns the VLAN table in creation order
func (sw *Switch) Vlans() []entities.VlanRecord {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	out := make([]entities.VlanRecord, 0, len(sw.vlanOrder))
	for _, id := range sw.vlanOrder {
		out = append(out, entities.VlanRecord{ID: strconv.Itoa(id), Name: sw.vlans[id]})
	}
	return out
}

// History returns every command line received, passwords included
func (sw *Switch) History() []string {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return append([]string(nil), sw.history...)
}

// Transfers returns the completed TFTP copies
func (sw *Switch) Transfers() []Transfer {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return append([]Transfer(nil), sw.transfers...)
}

// Saves counts successful writes to startup-config
func (sw *Switch) Saves() int {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.saves
}

// Privileged reports whether the device sits at the privileged level
func (sw *Switch) Privileged() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.mode != modeUserExec
}

func (sw *Switch) prompt() string {
	switch sw.mode {
	case modePrivExec:
		return sw.hostname + "#"
	case modeGlobalConfig:
		return sw.hostname + "(config)#"
	case modeVlanConfig:
		return sw.hostname + "(config-vlan)#"
	default:
		return sw.hostname + ">"
	}
}

func (sw *Switch) emit(s string) {
	if sw.opts.Silent {
		return
	}
	sw.output = append(sw.output, s...)
}

func (sw *Switch) emitPrompt() {
	if sw.opts.NoPrompt {
		return
	}
	sw.emit("\r\n" + sw.prompt())
}

// reply prints command output, paginating it when enabled, then the prompt
func (sw *Switch) reply(lines ...string) {
	if sw.paging && sw.opts.PageLines > 0 && len(lines) > sw.opts.PageLines {
		sw.held = lines
		sw.nextPage()
		return
	}
	for _, line := range lines {
		sw.emit("\r\n" + line)
	}
	sw.emitPrompt()
}

const moreMarker = " --More-- "

func (sw *Switch) nextPage() {
	n := sw.opts.PageLines
	if n > len(sw.held) {
		n = len(sw.held)
	}
	for i, line := range sw.held[:n] {
		if i == 0 && sw.moreShown {
			// erase the marker and continue on its line
			sw.emit(strings.Repeat("\b", len(moreMarker)) + line)
			continue
		}
		sw.emit("\r\n" + line)
	}
	sw.held = sw.held[n:]
	sw.moreShown = len(sw.held) > 0
	if sw.moreShown {
		sw.emit("\r\n" + moreMarker)
		return
	}
	sw.emitPrompt()
}

func (sw *Switch) handleLine(line string) {
	sw.history = append(sw.history, line)
	if sw.question != noQuestion {
		sw.answer(strings.TrimSpace(line))
		return
	}
	sw.emit(line)

	fields := strings.Fields(line)
	if len(fields) == 0 {
		sw.emitPrompt()
		return
	}
	switch sw.mode {
	case modeUserExec, modePrivExec:
		sw.execCommand(line, fields)
	default:
		sw.configCommand(line, fields)
	}
}

func (sw *Switch) execCommand(line string, fields []string) {
	privileged := sw.mode == modePrivExec
	switch {
	case line == "terminal length 0":
		if !sw.opts.IgnoreTerminalLength {
			sw.paging = false
		}
		sw.emitPrompt()
	case fields[0] == "enable":
		sw.enable()
	case fields[0] == "disable" && privileged:
		sw.mode = modeUserExec
		sw.emitPrompt()
	case line == "show vlan brief":
		sw.reply(sw.vlanBrief()...)
	case line == "show running-config | include ^hostname" && privileged:
		sw.reply("hostname " + sw.hostname)
	case line == "show running-config" && privileged:
		sw.reply(sw.runningConfig()...)
	case line == "configure terminal" && privileged:
		sw.mode = modeGlobalConfig
		sw.reply("Enter configuration commands, one per line.  End with CNTL/Z.")
	case line == "write memory" && privileged && !sw.opts.WriteMemoryUnsupported:
		sw.saves++
		sw.reply("Building configuration...", "[OK]")
	case line == "copy running-config startup-config" && privileged && !sw.opts.CopyStartupUnsupported:
		sw.question = askCopyDestination
		sw.emit("\r\nDestination filename [startup-config]? ")
	case line == "copy running-config tftp:" && privileged:
		sw.transfer = Transfer{}
		sw.question = askTFTPAddress
		sw.emit("\r\nAddress or name of remote host []? ")
	default:
		sw.reply(invalidInput)
	}
}

func (sw *Switch) enable() {
	switch {
	case sw.opts.NoEnable:
		sw.reply(invalidInput)
	case sw.mode != modeUserExec:
		sw.emitPrompt()
	case sw.opts.EnableSecret == "":
		sw.mode = modePrivExec
		sw.emitPrompt()
	default:
		sw.tries = 0
		sw.question = askEnablePassword
		sw.emit("\r\nPassword: ")
	}
}

func (sw *Switch) answer(text string) {
	q := sw.question
	sw.question = noQuestion
	switch q {
	case askEnablePassword:
		if text == sw.opts.EnableSecret {
			sw.mode = modePrivExec
			sw.emitPrompt()
			return
		}
		sw.tries++
		if sw.tries >= 3 {
			sw.reply("% Bad secrets")
			return
		}
		sw.question = askEnablePassword
		sw.emit("\r\nPassword: ")

	case askCopyDestination:
		sw.emit(text)
		sw.saves++
		sw.reply("Building configuration...", "[OK]")

	case askTFTPAddress:
		sw.emit(text)
		sw.transfer.Address = text
		if sw.opts.TFTPSkipFilename {
			sw.reply("% Bad IP address or host name")
			return
		}
		sw.question = askTFTPFilename
		sw.emit(fmt.Sprintf("\r\nDestination filename [%s-confg]? ", strings.ToLower(sw.hostname)))

	case askTFTPFilename:
		sw.emit(text)
		sw.transfer.Filename = text
		if sw.opts.TFTPConfirm {
			sw.question = askTFTPConfirm
			sw.emit("\r\n%Warning:There is a file already existing with this name\r\nDo you want to over write? [confirm]")
			return
		}
		sw.finishTransfer()

	case askTFTPConfirm:
		sw.finishTransfer()
	}
}

func (sw *Switch) finishTransfer() {
	if sw.opts.TFTPError {
		sw.reply(fmt.Sprintf("%%Error opening tftp://%s/%s (Timed out)", sw.transfer.Address, sw.transfer.Filename))
		return
	}
	sw.transfers = append(sw.transfers, sw.transfer)
	sw.reply("!!", "2743 bytes copied in 0.512 secs (5357 bytes/sec)")
}

func (sw *Switch) configCommand(line string, fields []string) {
	switch {
	case fields[0] == "end":
		sw.mode = modePrivExec
		sw.emitPrompt()
	case fields[0] == "exit":
		if sw.mode == modeVlanConfig {
			sw.mode = modeGlobalConfig
		} else {
			sw.mode = modePrivExec
		}
		sw.emitPrompt()
	case fields[0] == "hostname" && len(fields) == 2:
		sw.hostname = fields[1]
		sw.emitPrompt()
	case fields[0] == "vlan" && len(fields) == 2:
		id, err := strconv.Atoi(fields[1])
		if err != nil || id < 1 || id > 4094 {
			sw.reply(invalidInput)
			return
		}
		if id >= 1002 && id <= 1005 {
			sw.reply("Default VLAN " + fields[1] + " may not have its name changed.")
			return
		}
		if _, ok := sw.vlans[id]; !ok {
			sw.addVlan(id, fmt.Sprintf("VLAN%04d", id))
		}
		sw.curVlan = id
		sw.mode = modeVlanConfig
		sw.emitPrompt()
	case fields[0] == "name" && sw.mode == modeVlanConfig && len(fields) >= 2:
		name := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "name"))
		if len(name) > 32 {
			name = name[:32]
		}
		sw.vlans[sw.curVlan] = name
		sw.emitPrompt()
	default:
		sw.reply(invalidInput)
	}
}

func (sw *Switch) addVlan(id int, name string) {
	if _, ok := sw.vlans[id]; !ok {
		sw.vlanOrder = append(sw.vlanOrder, id)
	}
	sw.vlans[id] = name
}

func (sw *Switch) sortedVlans() []int {
	ids := append([]int(nil), sw.vlanOrder...)
	sort.Ints(ids)
	return ids
}

func (sw *Switch) vlanBrief() []string {
	lines := []string{
		"",
		"VLAN Name                             Status    Ports",
		"---- -------------------------------- --------- -------------------------------",
	}
	for _, id := range sw.sortedVlans() {
		status := "active"
		ports := ""
		if id >= 1002 && id <= 1005 {
			status = "act/unsup"
		}
		if id == 1 {
			ports = "Gi0/1, Gi0/2, Gi0/3, Gi0/4"
		}
		lines = append(lines, strings.TrimRight(fmt.Sprintf("%-4d %-32s %-9s %s", id, sw.vlans[id], status, ports), " "))
	}
	return lines
}

func (sw *Switch) runningConfig() []string {
	lines := []string{
		"Building configuration...",
		"",
		"Current configuration : 1543 bytes",
		"!",
		"version 15.2",
		"service timestamps debug datetime msec",
		"!",
		"hostname " + sw.hostname,
		"!",
	}
	for _, id := range sw.sortedVlans() {
		if id == 1 || (id >= 1002 && id <= 1005) {
			continue
		}
		lines = append(lines, fmt.Sprintf("vlan %d", id), " name "+sw.vlans[id], "!")
	}
	lines = append(lines,
		"interface GigabitEthernet0/1",
		" switchport mode access",
		"!",
		"line vty 0 4",
		" login local",
		"!",
		"end",
	)
	return lines
}

// Opener hands out a fresh simulated switch on every Open, mimicking one
// connection per operation
type Opener struct {
	Options Options
	Err     error // returned instead of a channel when set

	mu       sync.Mutex
	switches []*Switch
	params   []entities.ConnectionParameters
}

var _ ports.ChannelOpener = (*Opener)(nil)

// Open implements ports.ChannelOpener
func (o *Opener) Open(ctx context.Context, params entities.ConnectionParameters) (ports.Channel, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.params = append(o.params, params)
	if o.Err != nil {
		return nil, o.Err
	}
	sw := New(o.Options)
	o.switches = append(o.switches, sw)
	return sw, nil
}

// Last returns the most recently opened switch or nil
func (o *Opener) Last() *Switch {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.switches) == 0 {
		return nil
	}
	return o.switches[len(o.switches)-1]
}

// Opens counts connection attempts
func (o *Opener) Opens() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.params)
}
