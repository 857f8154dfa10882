package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"github.com/luca-patrignani/treecast/bench"
	"github.com/luca-patrignani/treecast/collective"
	"github.com/luca-patrignani/treecast/ledger"
	"github.com/luca-patrignani/treecast/store"
)

const previewLen = 8

func renderPanels(panels ...pterm.Panel) {
	_ = pterm.DefaultPanel.WithPanels([][]pterm.Panel{panels}).Render()
}

func deliveryPanel(b ledger.Block, buf collective.Buffer) pterm.Panel {
	d := b.Delivery
	pbox := pterm.DefaultBox.WithHorizontalPadding(4).WithTopPadding(1).WithBottomPadding(1)
	info := pterm.Sprintfln("Rank %d received %d %s from root %d in %d rounds (%v)",
		d.Rank, d.Count, d.Kind, d.Root, d.Rounds, time.Duration(d.Elapsed))
	info += pterm.Sprintfln("Participants: %d", d.Participants)
	info += pterm.Sprintfln("Digest: %s", pterm.LightCyan(d.Digest))
	info += pterm.Sprintfln("Block: #%d %s", b.Index, shortHash(b.Hash))
	info += pterm.BgGreen.Sprint(preview(buf))
	return pterm.Panel{Data: pbox.WithTitle(pterm.LightGreen("|DELIVERY|")).WithTitleTopCenter().Sprint(info)}
}

func benchPanel(r bench.Result) pterm.Panel {
	pbox := pterm.DefaultBox.WithHorizontalPadding(4).WithTopPadding(1).WithBottomPadding(1)
	cfg := r.Config
	info := pterm.Sprintfln("%d %s from root %d to %d participants over %s",
		cfg.Elements, cfg.Kind, cfg.Root, cfg.Participants, cfg.Transport)
	info += pterm.Sprintfln("Rounds: %d", r.Rounds)
	info += pterm.Sprintfln("Elapsed: %v", r.Elapsed)
	info += pterm.Sprintfln("Throughput: %.1f MiB/s", r.Throughput()/(1<<20))
	if r.Verified {
		info += pterm.LightGreen("Verified: every element matches")
	} else {
		info += pterm.LightRed(fmt.Sprintf("Verification failed: %d mismatching elements", r.Mismatches))
	}
	return pterm.Panel{Data: pbox.WithTitle(pterm.LightYellow("|BENCHMARK|")).WithTitleTopCenter().Sprint(info)}
}

func deliveriesTable(blocks []ledger.Block) pterm.TableData {
	data := pterm.TableData{{"#", "Time", "Root", "Rank", "Participants", "Kind", "Count", "Rounds", "Elapsed", "Digest"}}
	for _, b := range blocks {
		if b.Index == 0 {
			continue
		}
		d := b.Delivery
		data = append(data, []string{
			strconv.Itoa(b.Index),
			time.Unix(b.Timestamp, 0).Format(time.DateTime),
			strconv.Itoa(d.Root),
			strconv.Itoa(d.Rank),
			strconv.Itoa(d.Participants),
			d.Kind,
			strconv.Itoa(d.Count),
			strconv.Itoa(d.Rounds),
			time.Duration(d.Elapsed).String(),
			shortHash(d.Digest),
		})
	}
	return data
}

func benchRunsTable(runs []store.BenchRun) pterm.TableData {
	data := pterm.TableData{{"ID", "Time", "Transport", "Participants", "Elements", "Kind", "Root", "Elapsed", "Verified"}}
	for _, r := range runs {
		verified := pterm.LightGreen("yes")
		if !r.Verified {
			verified = pterm.LightRed("no")
		}
		data = append(data, []string{
			strconv.FormatInt(r.ID, 10),
			r.At.Local().Format(time.DateTime),
			r.Transport,
			strconv.Itoa(r.Participants),
			strconv.Itoa(r.Elements),
			r.Kind,
			strconv.Itoa(r.Root),
			r.Elapsed.String(),
			verified,
		})
	}
	return data
}

// preview renders the first elements of buf.
func preview(buf collective.Buffer) string {
	var elems []string
	n := min(buf.Len(), previewLen)
	for i := range n {
		switch buf.Kind {
		case collective.KindInt32:
			elems = append(elems, strconv.FormatInt(int64(buf.Int32s[i]), 10))
		case collective.KindFloat32:
			elems = append(elems, strconv.FormatFloat(float64(buf.Float32s[i]), 'g', -1, 32))
		case collective.KindFloat64:
			elems = append(elems, strconv.FormatFloat(buf.Float64s[i], 'g', -1, 64))
		}
	}
	s := "[" + strings.Join(elems, " ")
	if buf.Len() > n {
		s += " ..."
	}
	return s + "]"
}

func shortHash(h string) string {
	if len(h) <= 12 {
		return h
	}
	return h[:12]
}
