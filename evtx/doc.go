// Package evtx reads Windows Event Log (EVTX) files: the file header, the
// 64 KiB chunks, and the event records inside them. Record bodies are binary
// XML; they decode into bxml.Tag trees and render as XML text.
//
// Typical use:
//
//	f, err := evtx.Open("System.evtx")
//	if err != nil {
//		return err
//	}
//	defer f.Close()
//
//	records, err := f.Records()
//	if err != nil {
//		return err
//	}
//	for _, rec := range records {
//		xml, err := rec.XML()
//		...
//	}
package evtx
