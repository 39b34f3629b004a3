// Package formattest writes synthetic Toyo and PNE data roots for tests.
package formattest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// Toyo2Header is a Toyo2 data header with blank filler columns and a
// repeated temperature column.
const Toyo2Header = "Date,Time,PassTime[Sec],Voltage[V],Current[mA],,,Temp1[Deg],,,,,Condition,Mode,Cycle,TotlCycle,Temp1[Deg]"

// Toyo1Header adds PassedDate.
const Toyo1Header = "Date,Time,PassTime[Sec],Voltage[V],Current[mA],,,Temp1[Deg],,,,,Condition,Mode,Cycle,TotlCycle,PassedDate,Temp1[Deg]"

// CapacityHeader is a Toyo CAPACITY.LOG header.
const CapacityHeader = "Date,Time,Condition,Mode,Cycle,TotlCycle,Cap[mAh],PassTime,TotlPassTime,Pow[mWh],AveVolt[V],PeakVolt[V],PeakTemp[Deg],Ocv,DchCycle"

// Preamble is the metadata line Toyo writes before the header.
const Preamble = "0,0,1,0,0,0,0"

// Start is the timestamp of the first synthetic row.
var Start = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

// WriteFile writes content under dir, creating parents.
func WriteFile(t testing.TB, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// ToyoRow renders one data row. offset is the row's second count from Start.
func ToyoRow(offset int, voltage, currentMA, temp float64, cycle int, toyo1 bool) string {
	ts := Start.Add(time.Duration(offset) * time.Second)
	fields := []string{
		ts.Format("2006/01/02"),
		ts.Format("15:04:05"),
		fmt.Sprintf("+%d", offset),
		fmt.Sprintf("+%.4f", voltage),
		fmt.Sprintf("%+.2f", currentMA),
		"", "",
		fmt.Sprintf("+%.1f", temp),
		"", "", "", "",
		"1", "1",
		fmt.Sprintf("%d", cycle),
		fmt.Sprintf("%d", cycle),
	}
	if toyo1 {
		fields = append(fields, "0")
	}
	fields = append(fields, fmt.Sprintf("+%.1f", temp))
	return strings.Join(fields, ",")
}

// ToyoData renders a complete Toyo data file with rows rows starting at
// offset seconds.
func ToyoData(rows, offset int, toyo1 bool) string {
	header := Toyo2Header
	if toyo1 {
		header = Toyo1Header
	}
	var b strings.Builder
	b.WriteString(Preamble + "\r\n\r\n" + header + "\r\n")
	for i := 0; i < rows; i++ {
		b.WriteString(ToyoRow(offset+i*10, 3.7+float64(i)*0.001, 500, 25, 1, toyo1) + "\r\n")
	}
	return b.String()
}

// CapacityLog renders a CAPACITY.LOG with alternating charge and discharge
// rows; dischargeMAh gives one discharge capacity per cycle.
func CapacityLog(dischargeMAh []float64) string {
	var b strings.Builder
	b.WriteString(CapacityHeader + "\r\n")
	for i, c := range dischargeMAh {
		cycle := i + 1
		ts := Start.Add(time.Duration(cycle) * time.Hour)
		date, clock := ts.Format("2006/01/02"), ts.Format("15:04:05")
		fmt.Fprintf(&b, "%s,%s,1,1,%d,%d,%.1f,01:00:00,%02d:00:00,%.1f,3.9000,4.2000,26.0,4.1500,0\r\n",
			date, clock, cycle, cycle, c+10, cycle*2-1, (c+10)*3.9)
		fmt.Fprintf(&b, "%s,%s,2,1,%d,%d,%.1f,01:00:00,%02d:00:00,%.1f,3.7000,4.1500,27.0,3.6000,%d\r\n",
			date, clock, cycle, cycle, c, cycle*2, c*3.7, cycle)
	}
	return b.String()
}

// WriteToyoRoot creates <root>/<channel>/ with files 000001.. each holding
// rowsPerFile rows, plus a CAPACITY.LOG.
func WriteToyoRoot(t testing.TB, root, channel string, files, rowsPerFile int, toyo1 bool) {
	t.Helper()
	dir := filepath.Join(root, channel)
	for i := 0; i < files; i++ {
		WriteFile(t, dir, fmt.Sprintf("%06d", i+1), ToyoData(rowsPerFile, i*rowsPerFile*10, toyo1))
	}
	WriteFile(t, dir, "CAPACITY.LOG", CapacityLog([]float64{3000, 2950, 2800}))
}

// PNERow renders one 47-field PNE row.
func PNERow(index int, voltageUV, currentUA int64, cycle int, centisec int64) string {
	f := make([]string, 47)
	for i := range f {
		f[i] = "0"
	}
	f[0] = fmt.Sprint(index)
	f[2] = "1"
	f[3] = "2"
	f[8] = fmt.Sprint(voltageUV)
	f[9] = fmt.Sprint(currentUA)
	f[10] = fmt.Sprint(int64(index) * 1000)
	f[21] = "25"
	f[28] = fmt.Sprint(cycle)
	f[33] = "20240115"
	f[34] = fmt.Sprint(centisec)
	return strings.Join(f, ",")
}

// PNEData renders a SaveData file whose rows continue from startIndex.
func PNEData(rows, startIndex int) string {
	var b strings.Builder
	for i := 0; i < rows; i++ {
		idx := startIndex + i
		b.WriteString(PNERow(idx, 3700000, -500000, 1, int64(idx)*100) + "\n")
	}
	return b.String()
}

// WritePNERoot creates <root>/<channel>/Restore with numbered SaveData files
// of rowsPerFile rows each, the two index files and a SaveEndData file.
func WritePNERoot(t testing.TB, root, channel string, files, rowsPerFile int) {
	t.Helper()
	dir := filepath.Join(root, channel, "Restore")
	for i := 0; i < files; i++ {
		WriteFile(t, dir, fmt.Sprintf("ch03_SaveData%04d.csv", i+1), PNEData(rowsPerFile, i*rowsPerFile+1))
	}
	WriteFile(t, dir, "savingFileIndex_start.csv", "1,1,24,1,15\n2,51,24,1,15\n")
	WriteFile(t, dir, "savingFileIndex_last.csv", "2,100,24,1,15\n")
	WriteFile(t, dir, "ch03_SaveEndData.csv", PNEData(1, files*rowsPerFile))
}
