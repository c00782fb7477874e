package escpos

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DetectedPrinter describes a candidate printer device on this host.
type DetectedPrinter struct {
	Name    string `json:"name"`
	Device  string `json:"device"`
	VID     string `json:"vid,omitempty"`
	PID     string `json:"pid,omitempty"`
	ViaUDEV bool   `json:"via_udev"`
}

// DetectUSBPrinters lists USB line-printer device files. It scans
// /dev/usb/lp* and enriches each hit with vendor/product ids from sysfs
// when available. Absence of devices is not an error.
func DetectUSBPrinters() ([]DetectedPrinter, error) {
	devices, err := filepath.Glob("/dev/usb/lp*")
	if err != nil {
		return nil, err
	}
	sort.Strings(devices)

	printers := make([]DetectedPrinter, 0, len(devices))
	for _, dev := range devices {
		p := DetectedPrinter{
			Name:   filepath.Base(dev),
			Device: dev,
		}
		if vid, pid, ok := usbIDs(filepath.Base(dev)); ok {
			p.VID, p.PID = vid, pid
			p.ViaUDEV = true
		}
		printers = append(printers, p)
	}
	return printers, nil
}

// usbIDs walks sysfs from the lp class device up to the USB interface to
// read idVendor/idProduct.
func usbIDs(lpName string) (vid, pid string, ok bool) {
	base := filepath.Join("/sys/class/usbmisc", lpName, "device")
	for i := 0; i < 4; i++ {
		v, errV := os.ReadFile(filepath.Join(base, "idVendor"))
		p, errP := os.ReadFile(filepath.Join(base, "idProduct"))
		if errV == nil && errP == nil {
			return strings.TrimSpace(string(v)), strings.TrimSpace(string(p)), true
		}
		base = filepath.Join(base, "..")
	}
	return "", "", false
}

// FindUSBByID resolves the device file of the printer with the given
// vendor/product id pair.
func FindUSBByID(vid, pid string) (string, error) {
	printers, err := DetectUSBPrinters()
	if err != nil {
		return "", err
	}
	for _, p := range printers {
		if strings.EqualFold(p.VID, vid) && strings.EqualFold(p.PID, pid) {
			return p.Device, nil
		}
	}
	return "", fmt.Errorf("no usb printer with id %s:%s", vid, pid)
}

// DetectSerialPorts lists serial device files a printer could sit behind.
func DetectSerialPorts() ([]string, error) {
	var ports []string
	for _, pattern := range []string{"/dev/ttyUSB*", "/dev/ttyACM*"} {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, err
		}
		ports = append(ports, matches...)
	}
	sort.Strings(ports)
	return ports, nil
}
