// Package main provides a tool to generate a synthetic chart package.
//
// The produced zip follows the AIP layout the importer expects, so it can
// exercise the full import pipeline on a machine without real chart data.
//
// Usage:
//
//	go run ./cmd/mkpackage
//	go run ./cmd/mkpackage -o cycle.zip -airac 2509 -airports 4
package main

import (
	"archive/zip"
	"bytes"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"encoding/json/v2"
)

var (
	output   = flag.String("o", "chartbag-package.zip", "Output zip path")
	airac    = flag.String("airac", "", "AIRAC cycle designator (YYCC, default: current year, cycle 01)")
	airports = flag.Int("airports", 4, "Number of airports to include (1-8)")
)

type airportSeed struct {
	code        string
	nameLocal   string
	nameForeign string
}

var airportSeeds = []airportSeed{
	{"ZBAA", "北京/首都", "Beijing/Capital"},
	{"ZSSS", "上海/虹桥", "Shanghai/Hongqiao"},
	{"ZSPD", "上海/浦东", "Shanghai/Pudong"},
	{"ZGGG", "广州/白云", "Guangzhou/Baiyun"},
	{"ZUUU", "成都/双流", "Chengdu/Shuangliu"},
	{"ZPPP", "昆明/长水", "Kunming/Changshui"},
	{"ZLXY", "西安/咸阳", "Xi'an/Xianyang"},
	{"ZHHH", "武汉/天河", "Wuhan/Tianhe"},
}

// chart name patterns per category, %s is the airport code
var chartSeeds = map[string][]string{
	"ADC":  {"%s-1A Aerodrome Chart"},
	"APDC": {"%s-2A Aircraft Parking Docking Chart"},
	"SID":  {"%s-7A RNAV SID RWY 01", "%s-7B RNAV SID RWY 19"},
	"STAR": {"%s-8A RNAV STAR RWY 01", "%s-8B RNAV STAR RWY 19"},
	"IAC":  {"%s-10A ILS-DME RWY 01", "%s-10B VOR RWY 19"},
}

func main() {
	flag.Parse()

	cycle := *airac
	if cycle == "" {
		cycle = fmt.Sprintf("%02d01", time.Now().Year()%100)
	}
	count := *airports
	if count < 1 || count > len(airportSeeds) {
		log.Fatalf("airports must be between 1 and %d", len(airportSeeds))
	}

	f, err := os.Create(*output)
	if err != nil {
		log.Fatalf("Failed to create output: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)

	// Names sidecar at the package root
	names := map[string]map[string]string{}
	for _, a := range airportSeeds[:count] {
		names[a.code] = map[string]string{
			"name_local":   a.nameLocal,
			"name_foreign": a.nameForeign,
		}
	}
	sidecar, err := json.Marshal(map[string]any{"airports": names})
	if err != nil {
		log.Fatalf("Failed to marshal airports.json: %v", err)
	}
	if err := writeEntry(zw, "airports.json", sidecar); err != nil {
		log.Fatalf("Failed to write airports.json: %v", err)
	}

	chartCount := 0
	for _, a := range airportSeeds[:count] {
		for category, patterns := range chartSeeds {
			for _, pattern := range patterns {
				name := fmt.Sprintf(pattern, a.code)
				path := fmt.Sprintf("EAIP%s/%s/%s/%s.pdf", cycle, a.code, category, name)
				if err := writeEntry(zw, path, minimalPDF(name)); err != nil {
					log.Fatalf("Failed to write %s: %v", path, err)
				}
				chartCount++
			}
		}
	}

	if err := zw.Close(); err != nil {
		log.Fatalf("Failed to finalize zip: %v", err)
	}

	fmt.Printf("Wrote %s\n", *output)
	fmt.Printf("  AIRAC: %s\n", cycle)
	fmt.Printf("  Airports: %d\n", count)
	fmt.Printf("  Charts: %d\n", chartCount)
}

func writeEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// minimalPDF builds a one-page PDF with the chart name as its only content.
// Offsets in the xref table are computed while writing, so the result is a
// well-formed document that pdftoppm renders without complaint.
func minimalPDF(title string) []byte {
	escaped := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`).Replace(title)
	content := fmt.Sprintf("BT /F1 18 Tf 72 770 Td (%s) Tj ET", escaped)

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 595 842] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xrefStart := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xrefStart)

	return buf.Bytes()
}
