package pointcloud

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"image/color"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// PCDType is the format of a pcd file.
type PCDType int

const (
	// PCDAscii ascii format for pcd.
	PCDAscii PCDType = 0
	// PCDBinary binary format for pcd.
	PCDBinary PCDType = 1
)

// pcdScale converts cloud units (millimetres) into PCD units (metres).
const pcdScale = 1000.

func colorToPCDInt(pt Data) int {
	if pt == nil || !pt.HasColor() {
		return 255 << 16
	}
	r, g, b := pt.RGB255()
	return int(r)<<16 | int(g)<<8 | int(b)
}

func pcdIntToColor(c int) color.NRGBA {
	return color.NRGBA{R: uint8(0xFF & (c >> 16)), G: uint8(0xFF & (c >> 8)), B: uint8(0xFF & c), A: 255}
}

// ToPCD writes the cloud as an unorganized PCD v0.7 file.
func ToPCD(cloud PointCloud, out io.Writer, outputType PCDType) error {
	if outputType != PCDAscii && outputType != PCDBinary {
		return errors.Errorf("unsupported pcd output type %d", outputType)
	}
	hasColor := cloud.MetaData().HasColor
	var header strings.Builder
	header.WriteString("VERSION .7\n")
	if hasColor {
		header.WriteString("FIELDS x y z rgb\nSIZE 4 4 4 4\nTYPE F F F I\nCOUNT 1 1 1 1\n")
	} else {
		header.WriteString("FIELDS x y z\nSIZE 4 4 4\nTYPE F F F\nCOUNT 1 1 1\n")
	}
	fmt.Fprintf(&header, "WIDTH %d\nHEIGHT 1\nVIEWPOINT 0 0 0 1 0 0 0\nPOINTS %d\n", cloud.Size(), cloud.Size())
	if outputType == PCDBinary {
		header.WriteString("DATA binary\n")
	} else {
		header.WriteString("DATA ascii\n")
	}
	if _, err := io.WriteString(out, header.String()); err != nil {
		return err
	}
	return writePCDData(cloud, out, outputType, hasColor)
}

func writePCDData(cloud PointCloud, out io.Writer, pcdtype PCDType, hasColor bool) error {
	var err error
	buf := make([]byte, 16)
	cloud.Iterate(0, 0, func(pos r3.Vector, d Data) bool {
		x, y, z := pos.X/pcdScale, pos.Y/pcdScale, pos.Z/pcdScale
		switch pcdtype {
		case PCDBinary:
			binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(x)))
			binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(float32(y)))
			binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(float32(z)))
			n := 12
			if hasColor {
				binary.LittleEndian.PutUint32(buf[12:], uint32(colorToPCDInt(d)))
				n = 16
			}
			_, err = out.Write(buf[:n])
		default:
			if hasColor {
				_, err = fmt.Fprintf(out, "%f %f %f %d\n", x, y, z, colorToPCDInt(d))
			} else {
				_, err = fmt.Fprintf(out, "%f %f %f\n", x, y, z)
			}
		}
		return err == nil
	})
	return err
}

type pcdHeader struct {
	hasColor bool
	fields   int
	points   int
	data     PCDType
}

// ReadPCD reads an unorganized ascii or binary PCD file written by ToPCD.
func ReadPCD(inRaw io.Reader) (PointCloud, error) {
	in := bufio.NewReader(inRaw)
	header, err := readPCDHeader(in)
	if err != nil {
		return nil, err
	}
	pc := NewWithPrealloc(header.points)
	vals := make([]float64, header.fields)
	buf := make([]byte, 4*header.fields)
	for i := 0; i < header.points; i++ {
		if header.data == PCDBinary {
			if _, err := io.ReadFull(in, buf); err != nil {
				return nil, errors.Wrapf(err, "reading point %d", i)
			}
			for j := range vals {
				bits := binary.LittleEndian.Uint32(buf[4*j:])
				if j == 3 {
					vals[j] = float64(bits)
				} else {
					vals[j] = float64(math.Float32frombits(bits))
				}
			}
		} else {
			line, err := in.ReadString('\n')
			if err != nil && !(errors.Is(err, io.EOF) && line != "") {
				return nil, errors.Wrapf(err, "reading point %d", i)
			}
			tokens := strings.Fields(line)
			if len(tokens) != header.fields {
				return nil, errors.Errorf("unexpected number of fields in point %d", i)
			}
			for j, token := range tokens {
				if vals[j], err = strconv.ParseFloat(token, 64); err != nil {
					return nil, errors.Errorf("invalid point %d field %q", i, token)
				}
			}
		}
		pos := r3.Vector{X: vals[0] * pcdScale, Y: vals[1] * pcdScale, Z: vals[2] * pcdScale}
		data := NewBasicData()
		if header.hasColor {
			data = NewColoredData(pcdIntToColor(int(vals[3])))
		}
		if err := pc.Set(pos, data); err != nil {
			return nil, err
		}
	}
	return pc, nil
}

func readPCDHeader(in *bufio.Reader) (pcdHeader, error) {
	var header pcdHeader
	for {
		line, err := in.ReadString('\n')
		if err != nil {
			return header, errors.Wrap(err, "reading pcd header")
		}
		line, _, _ = strings.Cut(line, "#")
		field, value, _ := strings.Cut(strings.TrimSpace(line), " ")
		switch field {
		case "":
			continue
		case "VERSION":
			if value != ".7" && value != "0.7" {
				return header, errors.Errorf("unsupported pcd version %s", value)
			}
		case "FIELDS":
			switch value {
			case "x y z":
				header.fields = 3
			case "x y z rgb":
				header.fields, header.hasColor = 4, true
			default:
				return header, errors.Errorf("unsupported pcd fields %s", value)
			}
		case "POINTS":
			if header.points, err = strconv.Atoi(value); err != nil || header.points < 0 {
				return header, errors.Errorf("invalid POINTS %q", value)
			}
		case "DATA":
			switch value {
			case "ascii":
				header.data = PCDAscii
			case "binary":
				header.data = PCDBinary
			default:
				return header, errors.Errorf("unsupported pcd data type %s", value)
			}
			if header.fields == 0 {
				return header, errors.New("pcd header has no FIELDS line")
			}
			return header, nil
		case "SIZE", "TYPE", "COUNT", "WIDTH", "HEIGHT", "VIEWPOINT":
		default:
			return header, errors.Errorf("unknown pcd header line %q", line)
		}
	}
}
