package main

import (
	"bufio"
	"fmt"
	"os"
	"runtime"

	"golang.org/x/term"
)

// interactiveSelect lets the user move through lines with the arrow keys and
// press Enter to call show for the selected index.
func interactiveSelect(lines []string, show func(i int)) {
	if len(lines) == 0 {
		return
	}

	if runtime.GOOS == "windows" {
		enableVT()
	}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		fmt.Println("(interactive selection not supported on this terminal)")
		return
	}
	defer func() { term.Restore(fd, oldState) }()

	reader := bufio.NewReader(os.Stdin)
	selected := 0

	redraw := func() {
		// Raw mode needs explicit carriage returns.
		fmt.Print("\033[H\033[2J")
		for i, l := range lines {
			prefix := "  "
			if i == selected {
				prefix = "> "
			}
			fmt.Print(prefix + l + "\r\n")
		}
		fmt.Print("(↑/↓ to navigate, Enter to view details, Esc to quit)\r\n")
	}

	move := func(delta int) {
		next := selected + delta
		if next >= 0 && next < len(lines) {
			selected = next
			redraw()
		}
	}

	open := func() bool {
		term.Restore(fd, oldState)
		fmt.Println()
		show(selected)

		fmt.Print("\n(press Enter to return)")
		_, _ = bufio.NewReader(os.Stdin).ReadBytes('\n')

		oldState, err = term.MakeRaw(fd)
		if err != nil {
			return false
		}
		reader = bufio.NewReader(os.Stdin)
		redraw()
		return true
	}

	redraw()

	for {
		b1, err := reader.ReadByte()
		if err != nil {
			return
		}
		// Windows console arrow sequences (0 or 224, then code)
		if b1 == 0 || b1 == 224 {
			b2, _ := reader.ReadByte()
			switch b2 {
			case 72:
				move(-1)
			case 80:
				move(1)
			case 13:
				if !open() {
					return
				}
			}
			continue
		}

		switch b1 {
		case 27: // ESC or ANSI sequence
			if reader.Buffered() == 0 {
				fmt.Print("\r\n")
				return
			}
			b2, _ := reader.ReadByte()
			if b2 != '[' || reader.Buffered() == 0 {
				continue
			}
			b3, _ := reader.ReadByte()
			switch b3 {
			case 'A':
				move(-1)
			case 'B':
				move(1)
			}
		case '\r', '\n':
			if !open() {
				return
			}
		case 3, 'q': // Ctrl-C
			fmt.Print("\r\n")
			return
		}
	}
}
